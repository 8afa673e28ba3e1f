// Package price tracks the SOL/USD rate used to value market caps.
package price

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ilkamo/jupiter-go/jupiter"
	"github.com/rs/zerolog"

	"trend-scout/internal/observability"
)

// Defaults.
const (
	DefaultSolPrice        = 200.0
	DefaultRefreshInterval = 60 * time.Second

	SolMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWfd5v7Sg1UdWYtyA5mnoCzbUySYH3XwvAYXEg1u"

	lamportsPerSol = 1_000_000_000
	usdcUnits      = 1_000_000.0
)

// ErrNoQuote is returned when the quote source has no usable answer.
var ErrNoQuote = errors.New("price: no quote")

// Source fetches the current SOL price in USD.
type Source interface {
	SolUSD(ctx context.Context) (float64, error)
}

// JupiterSource quotes 1 SOL to USDC through the Jupiter swap API.
type JupiterSource struct {
	client *jupiter.ClientWithResponses
}

// NewJupiterSource creates a source against apiURL (jupiter.DefaultAPIURL when empty).
func NewJupiterSource(apiURL string) (*JupiterSource, error) {
	if apiURL == "" {
		apiURL = jupiter.DefaultAPIURL
	}
	client, err := jupiter.NewClientWithResponses(apiURL)
	if err != nil {
		return nil, fmt.Errorf("create jupiter client: %w", err)
	}
	return &JupiterSource{client: client}, nil
}

// SolUSD returns the USDC out-amount for one SOL.
func (s *JupiterSource) SolUSD(ctx context.Context) (float64, error) {
	slippageBps := 50
	resp, err := s.client.GetQuoteWithResponse(ctx, &jupiter.GetQuoteParams{
		InputMint:   SolMint,
		OutputMint:  USDCMint,
		Amount:      lamportsPerSol,
		SlippageBps: &slippageBps,
	})
	if err != nil {
		return 0, fmt.Errorf("get quote: %w", err)
	}
	if resp.JSON200 == nil {
		return 0, ErrNoQuote
	}
	return parseOutAmount(resp.JSON200.OutAmount)
}

func parseOutAmount(s string) (float64, error) {
	units, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse out amount %q: %w", s, err)
	}
	if units <= 0 {
		return 0, ErrNoQuote
	}
	return units / usdcUnits, nil
}

// Oracle caches the latest SOL price. Failed refreshes keep the previous value.
type Oracle struct {
	source   Source
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.RWMutex
	price float64
}

// NewOracle creates an oracle starting at initial (DefaultSolPrice when <= 0).
// A nil source leaves the price fixed.
func NewOracle(source Source, initial float64, interval time.Duration, logger zerolog.Logger) *Oracle {
	if initial <= 0 {
		initial = DefaultSolPrice
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	observability.SetSolPrice(initial)
	return &Oracle{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "price").Logger(),
		price:    initial,
	}
}

// Price returns the current SOL price in USD.
func (o *Oracle) Price() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price
}

// Refresh queries the source once.
func (o *Oracle) Refresh(ctx context.Context) error {
	if o.source == nil {
		return nil
	}
	start := time.Now()
	p, err := o.source.SolUSD(ctx)
	observability.RecordExternalCall("jupiter", "quote", time.Since(start).Seconds(), err)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.price = p
	o.mu.Unlock()
	observability.SetSolPrice(p)
	return nil
}

// Run refreshes immediately and then on every interval until ctx is done.
func (o *Oracle) Run(ctx context.Context) {
	if o.source == nil {
		return
	}
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if err := o.Refresh(ctx); err != nil && ctx.Err() == nil {
			o.logger.Warn().Err(err).Float64("price", o.Price()).Msg("sol price refresh failed, keeping previous value")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
