package domain

import "time"

// Bonding curve constants in USD market cap. A pump.fun token launches near
// LaunchMarketCap and graduates from the curve around TargetMarketCap.
const (
	LaunchMarketCap = 4000.0
	TargetMarketCap = 65000.0

	// TokenSupply is the fixed supply of a pump.fun mint, used to derive price from market cap.
	TokenSupply = 1_000_000_000.0

	// MaxIncompleteProgress caps progress for tokens not yet marked complete,
	// so that a progress of 100 always means the curve is done.
	MaxIncompleteProgress = 99.9
)

// Display fallbacks for creation events that omit a name or symbol.
const (
	UnknownName   = "Unknown"
	UnknownSymbol = "???"
)

// Token represents one observed mint as shown on the dashboard.
type Token struct {
	ID                   string    `json:"id"`                   // mint address, primary key
	Name                 string    `json:"name"`                 // display name (may be empty upstream)
	Symbol               string    `json:"symbol"`               // display symbol (may be empty upstream)
	Description          string    `json:"description"`          // short launch blurb
	Price                float64   `json:"price"`                // SOL per token
	MarketCap            float64   `json:"marketCap"`            // USD
	Volume24h            float64   `json:"volume24h"`            // SOL, additive over observed trades
	VSolInBondingCurve   float64   `json:"vSolInBondingCurve"`   // virtual SOL reserves
	ImageURL             string    `json:"imageUrl"`             // gateway-normalized or placeholder
	CreatedAt            time.Time `json:"createdAt"`            // first client-side observation
	Complete             bool      `json:"complete"`             // upstream completion flag
	BondingCurveProgress float64   `json:"bondingCurveProgress"` // derived, see BondingCurveProgress
}

// BondingCurveProgress derives the curve progress percentage from a USD market cap.
// The result is in [1, 100]; 100 is reserved for tokens marked complete.
func BondingCurveProgress(marketCap float64, complete bool) float64 {
	if complete {
		return 100
	}
	if marketCap <= LaunchMarketCap {
		return 1
	}
	p := (marketCap - LaunchMarketCap) / (TargetMarketCap - LaunchMarketCap) * 100
	if p < 1 {
		return 1
	}
	if p > MaxIncompleteProgress {
		return MaxIncompleteProgress
	}
	return p
}

// Recompute refreshes the derived progress from the current market cap.
func (t *Token) Recompute() {
	t.BondingCurveProgress = BondingCurveProgress(t.MarketCap, t.Complete)
}

// ApplyTrade applies a consolidated trade delta at the given SOL price.
// Market cap and price are point-in-time values taken from the delta; volume is added.
func (t Token) ApplyTrade(d TradeDelta, solPrice float64) Token {
	if d.HasMarketCap {
		t.MarketCap = d.MarketCapSol * solPrice
		t.Price = d.MarketCapSol / TokenSupply
	}
	if d.VSolInBondingCurve > 0 {
		t.VSolInBondingCurve = d.VSolInBondingCurve
	}
	t.Volume24h += d.VolumeAdd
	t.Recompute()
	return t
}
