package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"captionflow/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeGatewayConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeGatewayConfig holds the configuration for creating a StripeGateway.
type StripeGatewayConfig struct {
	SecretKey string
	BaseURL   string // override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeGateway implements the ledger's PaymentGateway contract by confirming
// PaymentIntents against the Stripe REST API through BaseClient, so every
// charge inherits the circuit breaker and retry behavior.
//
// The contract's failure semantics are preserved at this boundary: a card
// decline is decoded into a declined PaymentOutcome, never returned as an
// error. Errors mean Stripe itself could not be reached or answered
// nonsensically.
type StripeGateway struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeGateway creates a StripeGateway with a standard resilient client.
func NewStripeGateway(httpClient *http.Client, cfg StripeGatewayConfig) *StripeGateway {
	base := NewBaseClient(httpClient, "stripe", DefaultRetryPolicy(), "CaptionFlow/1.0")
	return newStripeGateway(base, cfg)
}

// NewStripeGatewayWithBase creates a StripeGateway over a pre-configured
// BaseClient. Useful in tests to control retry and breaker behavior.
func NewStripeGatewayWithBase(base *BaseClient, cfg StripeGatewayConfig) *StripeGateway {
	return newStripeGateway(base, cfg)
}

func newStripeGateway(base *BaseClient, cfg StripeGatewayConfig) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeGateway{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// ProcessPayment confirms a PaymentIntent for the plan charge and maps the
// result onto the ledger's outcome contract.
func (g *StripeGateway) ProcessPayment(ctx context.Context, plan types.Tier, amountCents int64, method string) (types.PaymentOutcome, error) {
	params := url.Values{}
	params.Set("amount", strconv.FormatInt(amountCents, 10))
	params.Set("currency", "usd")
	params.Set("payment_method", method)
	params.Set("confirm", "true")
	params.Set("description", fmt.Sprintf("CaptionFlow %s plan", plan))
	params.Set("metadata[plan]", string(plan))

	resp, err := g.doPost(ctx, "/v1/payment_intents", params)
	if err != nil {
		return types.PaymentOutcome{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var intent stripe.PaymentIntent
		if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
			return types.PaymentOutcome{}, types.NewAppError(
				types.ErrCodeUpstreamPayment,
				"failed to decode payment intent response",
				err,
			)
		}
		if intent.Status == stripe.PaymentIntentStatusSucceeded {
			return types.PaymentOutcome{Status: types.TxSucceeded, TransactionID: intent.ID}, nil
		}
		// Anything short of succeeded (requires_action, processing, canceled)
		// is a decline at this boundary; asynchronous confirmation flows are
		// not part of the contract.
		g.logger.InfoContext(ctx, "payment intent did not succeed",
			slog.String("intent_id", intent.ID),
			slog.String("status", string(intent.Status)),
		)
		return types.PaymentOutcome{Status: types.TxDeclined, TransactionID: intent.ID}, nil

	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode == http.StatusForbidden:
		// Card errors arrive with an error envelope; decode for the intent ID.
		var envelope struct {
			Error *stripe.Error `json:"error"`
		}
		outcome := types.PaymentOutcome{Status: types.TxDeclined}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
			if envelope.Error.PaymentIntent != nil {
				outcome.TransactionID = envelope.Error.PaymentIntent.ID
			}
			g.logger.InfoContext(ctx, "payment declined",
				slog.String("decline_code", string(envelope.Error.DeclineCode)),
				slog.String("intent_id", outcome.TransactionID),
			)
		}
		return outcome, nil

	default:
		return types.PaymentOutcome{}, types.NewAppError(
			types.ErrCodeUpstreamPayment,
			fmt.Sprintf("unexpected status %d from payment provider", resp.StatusCode),
			nil,
		)
	}
}

// doPost issues a form-encoded POST with the Stripe auth header.
func (g *StripeGateway) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build payment request", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", "2025-03-31.basil")
	return g.base.Do(req)
}

// StaticGateway is a canned-outcome gateway for local development and tests.
// It approves every charge after an optional artificial delay.
type StaticGateway struct {
	Outcome types.PaymentOutcome
	Delay   time.Duration
}

// ProcessPayment returns the canned outcome.
func (g *StaticGateway) ProcessPayment(ctx context.Context, _ types.Tier, _ int64, _ string) (types.PaymentOutcome, error) {
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return types.PaymentOutcome{}, ctx.Err()
		}
	}
	out := g.Outcome
	if out.Status == "" {
		out.Status = types.TxSucceeded
	}
	if out.TransactionID == "" {
		out.TransactionID = "static-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return out, nil
}
