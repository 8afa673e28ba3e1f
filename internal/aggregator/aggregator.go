// Package aggregator batches trade events between periodic flushes.
package aggregator

import (
	"sync"
	"time"

	"trend-scout/internal/domain"
)

// DefaultFlushInterval is how often the session drains the buffer.
const DefaultFlushInterval = 500 * time.Millisecond

// Aggregator buffers trade events produced by the feed reader.
// Add may be called concurrently with Flush.
type Aggregator struct {
	mu     sync.Mutex
	buffer []domain.TradeEvent
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Add appends a trade to the pending buffer.
func (a *Aggregator) Add(trade domain.TradeEvent) {
	if trade.Mint == "" {
		return
	}
	a.mu.Lock()
	a.buffer = append(a.buffer, trade)
	a.mu.Unlock()
}

// Pending returns the number of buffered trades.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Flush drains the buffer and consolidates trades per mint.
// Trades for mints rejected by isTracked are discarded. A nil isTracked accepts every mint.
// Volume is summed; market cap and virtual SOL reserves take the last value in arrival order.
// Returns nil when nothing tracked was buffered.
func (a *Aggregator) Flush(isTracked func(mint string) bool) map[string]domain.TradeDelta {
	a.mu.Lock()
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var deltas map[string]domain.TradeDelta
	for _, tr := range batch {
		if isTracked != nil && !isTracked(tr.Mint) {
			continue
		}
		if deltas == nil {
			deltas = make(map[string]domain.TradeDelta)
		}
		d := deltas[tr.Mint]
		d.Mint = tr.Mint
		d.VolumeAdd += tr.SolAmount
		d.Trades++
		if tr.MarketCapSol > 0 {
			d.MarketCapSol = tr.MarketCapSol
			d.HasMarketCap = true
		}
		if tr.VSolInBondingCurve > 0 {
			d.VSolInBondingCurve = tr.VSolInBondingCurve
		}
		deltas[tr.Mint] = d
	}
	return deltas
}
