package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"captionflow/internal/types"
)

// DefaultTrialTokens is the one-time trial grant applied when the caller does
// not specify an amount.
const DefaultTrialTokens = 50

// PaymentGateway is the consumed payment contract. A decline is communicated
// via the outcome status, never via an error; errors mean the gateway itself
// could not be reached.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, plan types.Tier, amountCents int64, method string) (types.PaymentOutcome, error)
}

// Service is the ledger business logic: initialization, balance mutation, and
// the trial/renewal/upgrade workflows. It holds no UI concerns and is wired
// entirely through the injected repository, trackers, and gateway.
//
// Every balance mutation runs through the repository's atomic Mutate, so two
// concurrent consumers of the same subscriber serialize at the storage layer
// and can never over-consume the balance.
type Service struct {
	repo    *SubscriptionRepository
	usage   *UsageTracker
	txlog   *TransactionLog
	gateway PaymentGateway
	plans   PlanRegistry
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the service clock. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the ledger service.
func NewService(
	repo *SubscriptionRepository,
	usage *UsageTracker,
	txlog *TransactionLog,
	gateway PaymentGateway,
	plans PlanRegistry,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		usage:   usage,
		txlog:   txlog,
		gateway: gateway,
		plans:   plans,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSubscription creates the default record for id if none exists and
// returns the current state. Idempotent: a second call on an existing record
// is a no-op and returns the existing record unchanged.
func (s *Service) EnsureSubscription(ctx context.Context, id string) (*types.Subscription, error) {
	return s.repo.Mutate(ctx, id, func(*types.Subscription) (bool, error) {
		return false, nil
	})
}

// GetState returns the clamped view of the subscription, creating the default
// record lazily on first access.
func (s *Service) GetState(ctx context.Context, id string) (*types.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return s.EnsureSubscription(ctx, id)
		}
		return nil, err
	}
	return sub, nil
}

// StartTrial grants the one-time trial bonus. The grant is applied at most
// once per subscriber for the subscription's lifetime: if the trial was
// already started the call performs no mutation and reports AlreadyStarted.
// The granted amount is clamped into the tier cap.
func (s *Service) StartTrial(ctx context.Context, id string, trialTokens int) (*types.TrialResult, error) {
	if trialTokens <= 0 {
		trialTokens = DefaultTrialTokens
	}

	granted := false
	sub, err := s.repo.Mutate(ctx, id, func(sub *types.Subscription) (bool, error) {
		if sub.TrialStarted() {
			return false, nil
		}
		startedAt := s.now()
		sub.Tokens += trialTokens
		sub.TrialStartedAt = &startedAt
		granted = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if granted {
		s.recordUsage(ctx, types.UsageEvent{
			ID:           uuid.NewString(),
			SubscriberID: id,
			Amount:       trialTokens,
			Action:       types.ActionTrial,
			OccurredAt:   s.now(),
		})
	}
	return &types.TrialResult{AlreadyStarted: !granted, Subscription: sub}, nil
}

// ConsumeTokens decrements the balance by amount. When the balance is
// insufficient the call fails with insufficient_balance and mutates nothing.
func (s *Service) ConsumeTokens(ctx context.Context, id string, amount int) (*types.Subscription, error) {
	if amount <= 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidAmount,
			"consume amount must be a positive integer", nil)
	}

	sub, err := s.repo.Mutate(ctx, id, func(sub *types.Subscription) (bool, error) {
		if sub.Tokens < amount {
			return false, types.NewAppErrorWithDetails(
				types.ErrCodeInsufficientBalance,
				fmt.Sprintf("balance %d is below requested %d", sub.Tokens, amount),
				nil,
				map[string]any{"tokens": sub.Tokens, "requested": amount},
			)
		}
		sub.Tokens -= amount
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, types.UsageEvent{
		ID:           uuid.NewString(),
		SubscriberID: id,
		Amount:       amount,
		Action:       types.ActionUsed,
		OccurredAt:   s.now(),
	})
	return sub, nil
}

// Renew unconditionally resets the balance to the tier cap. Renewal never
// accumulates: a balance of 3 on Basic renews to 200, not 203. The renewal
// charge for the current tier is appended to the transaction history.
func (s *Service) Renew(ctx context.Context, id string) (*types.Subscription, error) {
	sub, err := s.repo.Mutate(ctx, id, func(sub *types.Subscription) (bool, error) {
		sub.Tokens = s.plans.GetSpec(sub.Tier).TokenCap
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	spec := s.plans.GetSpec(sub.Tier)
	s.recordUsage(ctx, types.UsageEvent{
		ID:           uuid.NewString(),
		SubscriberID: id,
		Amount:       spec.TokenCap,
		Action:       types.ActionRenewal,
		OccurredAt:   s.now(),
	})
	s.recordTransaction(ctx, types.Transaction{
		ID:            uuid.NewString(),
		SubscriberID:  id,
		Plan:          sub.Tier,
		AmountCents:   spec.MonthlyPriceCents,
		PaymentMethod: "card",
		Status:        types.TxSucceeded,
		OccurredAt:    s.now(),
	})
	return sub, nil
}

// Upgrade applies a tier change gated on an already-obtained payment outcome.
// On a succeeded outcome the tier changes and the balance resets to the new
// tier's full cap -- no proration, no carry-over. On a declined outcome the
// subscription is left untouched, the declined transaction is still appended
// for audit, and the caller receives payment_declined.
func (s *Service) Upgrade(ctx context.Context, id string, newTier types.Tier, paymentMethod string, outcome types.PaymentOutcome) (*types.Subscription, error) {
	if !newTier.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTier,
			fmt.Sprintf("unknown tier %q", newTier), nil)
	}
	spec := s.plans.GetSpec(newTier)

	tx := types.Transaction{
		ID:            outcome.TransactionID,
		SubscriberID:  id,
		Plan:          newTier,
		AmountCents:   spec.MonthlyPriceCents,
		PaymentMethod: paymentMethod,
		Status:        outcome.Status,
		OccurredAt:    s.now(),
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.recordTransaction(ctx, tx)

	if !outcome.Succeeded() {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodePaymentDeclined,
			fmt.Sprintf("payment for tier %s was declined", newTier),
			nil,
			map[string]any{"transaction_id": tx.ID},
		)
	}

	return s.repo.Mutate(ctx, id, func(sub *types.Subscription) (bool, error) {
		sub.Tier = newTier
		sub.Tokens = spec.TokenCap
		return true, nil
	})
}

// UpgradeWithPayment charges the payment gateway for the new tier and applies
// Upgrade with the resulting outcome. Gateway transport failures surface as
// upstream errors without touching the subscription or the transaction log.
func (s *Service) UpgradeWithPayment(ctx context.Context, id string, newTier types.Tier, paymentMethod string) (*types.Subscription, error) {
	if !newTier.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTier,
			fmt.Sprintf("unknown tier %q", newTier), nil)
	}
	spec := s.plans.GetSpec(newTier)

	outcome, err := s.gateway.ProcessPayment(ctx, newTier, spec.MonthlyPriceCents, paymentMethod)
	if err != nil {
		return nil, err
	}
	return s.Upgrade(ctx, id, newTier, paymentMethod, outcome)
}

// ToggleAutoRenew flips the auto-renew flag and returns the new state. No
// other field changes. Storage and toggle only: nothing in this subsystem
// schedules an automatic renewal off the flag.
func (s *Service) ToggleAutoRenew(ctx context.Context, id string) (*types.Subscription, error) {
	return s.repo.Mutate(ctx, id, func(sub *types.Subscription) (bool, error) {
		sub.AutoRenew = !sub.AutoRenew
		return true, nil
	})
}

// Usage returns the month-windowed aggregation for the subscriber, using the
// current (clamped) tier for the empty-history seed.
func (s *Service) Usage(ctx context.Context, id string) (types.UsageSummary, error) {
	sub, err := s.GetState(ctx, id)
	if err != nil {
		return types.UsageSummary{}, err
	}
	return s.usage.Aggregate(ctx, id, sub.Tier, s.now())
}

// Transactions returns the subscriber's billing history, most recent first.
func (s *Service) Transactions(ctx context.Context, id string) ([]types.Transaction, error) {
	sub, err := s.GetState(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.txlog.List(ctx, id, sub.Tier, s.now())
}

// recordUsage appends alongside a successful mutation. History writes never
// fail the operation that produced them; failures only log.
func (s *Service) recordUsage(ctx context.Context, event types.UsageEvent) {
	if err := s.usage.Record(ctx, event); err != nil {
		s.logger.Warn("usage event append failed",
			slog.String("subscriber_id", event.SubscriberID),
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()),
		)
	}
}

// recordTransaction appends alongside a billing outcome, same policy as
// recordUsage.
func (s *Service) recordTransaction(ctx context.Context, tx types.Transaction) {
	if err := s.txlog.Append(ctx, tx); err != nil {
		s.logger.Warn("transaction append failed",
			slog.String("subscriber_id", tx.SubscriberID),
			slog.String("status", string(tx.Status)),
			slog.String("error", err.Error()),
		)
	}
}
