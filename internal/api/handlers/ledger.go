// Package handlers contains the HTTP handlers for the ledger API. Handlers
// are thin: decode, validate, delegate to the service, envelope the result.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"captionflow/internal/core"
	"captionflow/internal/types"
)

// LedgerService is the service surface the handler depends on. Declared here
// so tests can substitute a fake without touching the real service wiring.
type LedgerService interface {
	EnsureSubscription(ctx context.Context, id string) (*types.Subscription, error)
	GetState(ctx context.Context, id string) (*types.Subscription, error)
	StartTrial(ctx context.Context, id string, trialTokens int) (*types.TrialResult, error)
	ConsumeTokens(ctx context.Context, id string, amount int) (*types.Subscription, error)
	Renew(ctx context.Context, id string) (*types.Subscription, error)
	UpgradeWithPayment(ctx context.Context, id string, newTier types.Tier, paymentMethod string) (*types.Subscription, error)
	ToggleAutoRenew(ctx context.Context, id string) (*types.Subscription, error)
	Usage(ctx context.Context, id string) (types.UsageSummary, error)
	Transactions(ctx context.Context, id string) ([]types.Transaction, error)
}

// LedgerHandler exposes the ledger operations under /v1/subscribers.
type LedgerHandler struct {
	svc       LedgerService
	validator *core.Validator
	logger    *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(svc LedgerService, validator *core.Validator, logger *slog.Logger) *LedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandler{svc: svc, validator: validator, logger: logger}
}

// RegisterRoutes mounts the ledger routes on the given router.
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/subscribers/{id}", func(r chi.Router) {
		r.Put("/subscription", h.ensure)
		r.Get("/subscription", h.getState)
		r.Post("/trial", h.startTrial)
		r.Post("/consume", h.consume)
		r.Post("/renew", h.renew)
		r.Post("/upgrade", h.upgrade)
		r.Post("/auto-renew", h.toggleAutoRenew)
		r.Get("/usage", h.usage)
		r.Get("/transactions", h.transactions)
	})
}

type trialRequest struct {
	Tokens int `json:"tokens" validate:"omitempty,min=1,max=1000"`
}

type consumeRequest struct {
	Amount int `json:"amount" validate:"omitempty,min=1"`
}

type upgradeRequest struct {
	Tier          string `json:"tier" validate:"required,oneof=basic premium"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

func (h *LedgerHandler) ensure(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.EnsureSubscription(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) getState(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetState(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) startTrial(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if r.ContentLength > 0 {
		if err := core.DecodeJSON(r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	result, err := h.svc.StartTrial(r.Context(), subscriberID(r), req.Tokens)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, result)
}

func (h *LedgerHandler) consume(w http.ResponseWriter, r *http.Request) {
	req := consumeRequest{Amount: 1}
	if r.ContentLength > 0 {
		if err := core.DecodeJSON(r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
		if req.Amount == 0 {
			req.Amount = 1
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	sub, err := h.svc.ConsumeTokens(r.Context(), subscriberID(r), req.Amount)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) renew(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Renew(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) upgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	sub, err := h.svc.UpgradeWithPayment(r.Context(), subscriberID(r), types.Tier(req.Tier), req.PaymentMethod)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) toggleAutoRenew(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.ToggleAutoRenew(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *LedgerHandler) usage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Usage(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, summary)
}

func (h *LedgerHandler) transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Transactions(r.Context(), subscriberID(r))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, txs)
}

func subscriberID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
