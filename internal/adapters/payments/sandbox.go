package payments

import (
	"context"
	"fmt"
	"sync"

	"live-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Sandbox is an in-process provider for local runs. Like a real provider it
// answers a repeated idempotency key with the first result, and the
// declined destination lets operators rehearse failed payouts.
type Sandbox struct {
	autoCapture bool
	intents     map[string]outbound.Intent
	transfers   map[string]outbound.Transfer
	mu          sync.Mutex
	logger      zerolog.Logger
}

// SandboxDeclinedDestination is refused by CreateTransfer
const SandboxDeclinedDestination = "acct_declined"

type SandboxParams struct {
	// AutoCapture makes charges succeed immediately instead of waiting for a webhook
	AutoCapture bool
	Logger      zerolog.Logger
}

func NewSandbox(params SandboxParams) *Sandbox {
	return &Sandbox{
		autoCapture: params.AutoCapture,
		intents:     make(map[string]outbound.Intent),
		transfers:   make(map[string]outbound.Transfer),
		logger:      params.Logger.With().Str("component", "sandbox_provider").Logger(),
	}
}

func (s *Sandbox) Name() string { return "sandbox" }

func (s *Sandbox) CreatePaymentIntent(_ context.Context, req outbound.IntentRequest) (*outbound.Intent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("sandbox: amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if intent, ok := s.intents[req.IdempotencyKey]; ok {
		return &intent, nil
	}

	id := "pi_sandbox_" + req.IdempotencyKey
	status := "requires_action"
	if s.autoCapture {
		status = "succeeded"
	}
	intent := outbound.Intent{ID: id, Status: status, ClientSecret: id + "_secret"}
	s.intents[req.IdempotencyKey] = intent

	s.logger.Debug().Str("intent_id", id).Int64("amount", req.Amount).Msg("Sandbox intent created")
	return &intent, nil
}

func (s *Sandbox) CreateTransfer(_ context.Context, req outbound.TransferRequest) (*outbound.Transfer, error) {
	if req.Destination == SandboxDeclinedDestination {
		return nil, fmt.Errorf("sandbox: destination %s declined the transfer", req.Destination)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if transfer, ok := s.transfers[req.IdempotencyKey]; ok {
		return &transfer, nil
	}

	transfer := outbound.Transfer{ID: "tr_sandbox_" + req.IdempotencyKey}
	s.transfers[req.IdempotencyKey] = transfer

	s.logger.Debug().Str("transfer_id", transfer.ID).Int64("amount", req.Amount).Msg("Sandbox transfer created")
	return &transfer, nil
}

// TransferCount reports how many distinct transfers were made
func (s *Sandbox) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

var _ outbound.PaymentProvider = (*Sandbox)(nil)
