// Package payments holds the card-processing and transfer providers.
package payments

import (
	"fmt"

	"live-auction-service/internal/config"
	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// NewProvider builds the provider selected by configuration
func NewProvider(cfg *config.Config, logger zerolog.Logger) (outbound.PaymentProvider, error) {
	switch cfg.Payments.Provider {
	case config.ProviderSandbox:
		return NewSandbox(SandboxParams{AutoCapture: cfg.Payments.SandboxAutoCapture, Logger: logger}), nil
	case config.ProviderPayPal:
		return NewPayPal(PayPalParams{
			ClientID:     cfg.Payments.ClientID,
			ClientSecret: cfg.Payments.ClientSecret,
			BaseURL:      cfg.Payments.BaseURL,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedProvider, cfg.Payments.Provider)
	}
}

// formatAmount renders minor units as the provider's decimal string
func formatAmount(amount int64) string {
	return decimal.NewFromInt(amount).Shift(-2).StringFixed(2)
}
