package domain

// Transaction types carried in the feed's txType discriminator.
const (
	TxCreate = "create"
	TxBuy    = "buy"
	TxSell   = "sell"
	TxTrade  = "trade"
)

// CreateEvent is a token-creation message from the feed.
type CreateEvent struct {
	Signature             string  `json:"signature"`
	Mint                  string  `json:"mint"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	TxType                string  `json:"txType"`
	InitialBuy            float64 `json:"initialBuy"`
	SolAmount             float64 `json:"solAmount"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	URI                   string  `json:"uri"`
}

// TradeEvent is a buy/sell message for a subscribed token.
type TradeEvent struct {
	Signature             string  `json:"signature"`
	Mint                  string  `json:"mint"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	TxType                string  `json:"txType"`
	TokenAmount           float64 `json:"tokenAmount"`
	SolAmount             float64 `json:"solAmount"`
	NewTokenBalance       float64 `json:"newTokenBalance"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
}

// TradeDelta is the consolidated effect of all trades for one mint within a flush window.
type TradeDelta struct {
	Mint               string
	VolumeAdd          float64 // sum of solAmount
	MarketCapSol       float64 // last non-zero event wins
	HasMarketCap       bool    // false when no event in the window carried a market cap
	VSolInBondingCurve float64 // last non-zero event wins
	Trades             int
}
