// Package target arbitrates the session's single official token.
package target

import (
	"strings"
	"time"

	"trend-scout/internal/domain"
	"trend-scout/internal/metadata"
)

// Config holds the targeting rule and presentation overrides.
type Config struct {
	Mint          string   // pinned address; when set only this id may become official
	Names         []string // exact names, case-insensitive, leading $ ignored
	Symbols       []string // exact symbols, case-insensitive, leading $ ignored
	OverrideImage string   // replaces any resolved image of the official token
}

// Result reports the effect of an operation on the lock.
type Result struct {
	Changed bool // the official target value changed
	Claim   bool // the caller should claim the target in the remote store
}

// Lock owns the official target and its precedence rules.
//
// Rules, in order:
//   - a configured mint admits only that exact id and seeds a skeleton token;
//   - an existing target admits only its own id from creation events;
//   - otherwise a token whose name or symbol equals a configured one is taken tentatively.
//
// Remote records are authoritative: one that passes the base rule (pinned mint or
// name/symbol) replaces the current target, and an absent or failing record clears it.
//
// Lock is not safe for concurrent use; the session owns it.
type Lock struct {
	cfg      Config
	names    map[string]struct{}
	symbols  map[string]struct{}
	now      func() time.Time
	current  *domain.OfficialTarget
	claiming bool
}

// New creates a Lock. With a pinned mint the skeleton target is in place immediately.
func New(cfg Config) *Lock {
	l := &Lock{
		cfg:     cfg,
		names:   normalizeSet(cfg.Names),
		symbols: normalizeSet(cfg.Symbols),
		now:     time.Now,
	}
	if cfg.Mint != "" {
		l.set(l.skeleton())
	}
	return l
}

// Pinned reports whether a mint address is configured.
func (l *Lock) Pinned() bool {
	return l.cfg.Mint != ""
}

// Current returns a copy of the official target, or nil.
func (l *Lock) Current() *domain.OfficialTarget {
	if l.current == nil {
		return nil
	}
	t := *l.current
	return &t
}

// ID returns the official token id, or "".
func (l *Lock) ID() string {
	if l.current == nil {
		return ""
	}
	return l.current.Token.ID
}

// Status summarizes where the hunt stands.
func (l *Lock) Status() domain.TargetStatus {
	switch {
	case l.current == nil:
		return domain.StatusHunting
	case l.current.Stage == domain.StagePersisted:
		return domain.StatusLocked
	case l.current.Stage == domain.StageConfirmed:
		return domain.StatusConfirmed
	default:
		return domain.StatusTentative
	}
}

// MatchesName reports whether name or symbol equals a configured one.
func (l *Lock) MatchesName(name, symbol string) bool {
	if _, ok := l.names[normalize(name)]; ok {
		return true
	}
	_, ok := l.symbols[normalize(symbol)]
	return ok
}

// Valid reports whether a token passes the base rule: the pinned mint when set,
// the name/symbol lists otherwise.
func (l *Lock) Valid(id, name, symbol string) bool {
	if l.cfg.Mint != "" {
		return id == l.cfg.Mint
	}
	return l.MatchesName(name, symbol)
}

// Admits reports whether a creation event for the token may set or refresh the target.
func (l *Lock) Admits(id, name, symbol string) bool {
	if l.cfg.Mint != "" {
		return id == l.cfg.Mint
	}
	if l.current != nil {
		return id == l.current.Token.ID
	}
	return l.MatchesName(name, symbol)
}

// Restore adopts a target loaded from the durable cache. Returns false when the
// cached value fails the base rule; the caller must then clear the cache.
func (l *Lock) Restore(cached *domain.OfficialTarget) bool {
	if cached == nil || cached.Token.ID == "" {
		return false
	}
	tok := cached.Token
	if !l.Valid(tok.ID, tok.Name, tok.Symbol) {
		return false
	}
	stage := cached.Stage
	if stage == "" {
		stage = domain.StageTentative
	}
	l.set(&domain.OfficialTarget{
		Token:      tok,
		Provenance: domain.ProvenanceCache,
		Stage:      stage,
	})
	return true
}

// Offer presents a committed creation-event token.
func (l *Lock) Offer(tok domain.Token) Result {
	if !l.Admits(tok.ID, tok.Name, tok.Symbol) {
		return Result{}
	}

	var next domain.OfficialTarget
	switch {
	case l.current != nil && l.current.Token.ID == tok.ID:
		next = *l.current
		next.Token = tok
		next.Skeleton = false
		if l.cfg.Mint != "" {
			next.Provenance = domain.ProvenanceConfig
			if next.Stage == domain.StageTentative {
				next.Stage = domain.StageConfirmed
			}
		}
	case l.cfg.Mint != "":
		next = domain.OfficialTarget{Token: tok, Provenance: domain.ProvenanceConfig, Stage: domain.StageConfirmed}
	default:
		next = domain.OfficialTarget{Token: tok, Provenance: domain.ProvenanceHeuristic, Stage: domain.StageTentative}
	}

	changed := l.set(&next)
	return Result{Changed: changed, Claim: l.needsClaim()}
}

// Reconcile applies the remote store's latest record; rec is nil when the store is empty.
func (l *Lock) Reconcile(rec *domain.OfficialRecord) Result {
	if rec != nil && l.Valid(rec.Mint, rec.Name, rec.Symbol) {
		return Result{Changed: l.adopt(*rec)}
	}

	if l.cfg.Mint != "" {
		// The pinned target outlives remote absence; it is written back if it holds real data.
		return Result{Claim: rec == nil && l.needsClaim()}
	}
	if l.claiming {
		return Result{}
	}
	return Result{Changed: l.set(nil)}
}

// RemoteInsert applies a pushed insert. Records failing the base rule are ignored.
func (l *Lock) RemoteInsert(rec domain.OfficialRecord) Result {
	if !l.Valid(rec.Mint, rec.Name, rec.Symbol) {
		return Result{}
	}
	return Result{Changed: l.adopt(rec)}
}

// BeginClaim marks a claim in flight. Returns false if one already is, or if
// there is nothing to claim.
func (l *Lock) BeginClaim() (domain.OfficialRecord, bool) {
	if l.claiming || !l.needsClaim() {
		return domain.OfficialRecord{}, false
	}
	l.claiming = true
	t := l.current.Token
	return domain.OfficialRecord{
		Mint:       t.ID,
		Name:       t.Name,
		Symbol:     t.Symbol,
		ImageURI:   t.ImageURL,
		DetectedAt: l.now().UTC(),
	}, true
}

// EndClaim settles a claim. rec is the record in effect after the claim, or nil
// when the claim failed; a failed claim leaves the target as it was.
func (l *Lock) EndClaim(rec *domain.OfficialRecord) Result {
	l.claiming = false
	if rec == nil {
		return Result{}
	}
	return l.Reconcile(rec)
}

// ApplyDeltas applies the trade delta for the official token, if any.
func (l *Lock) ApplyDeltas(deltas map[string]domain.TradeDelta, solPrice float64) bool {
	if l.current == nil {
		return false
	}
	d, ok := deltas[l.current.Token.ID]
	if !ok {
		return false
	}
	next := *l.current
	next.Token = next.Token.ApplyTrade(d, solPrice)
	return l.set(&next)
}

// Patch applies fn to the official token when its id matches.
func (l *Lock) Patch(id string, fn func(domain.Token) domain.Token) bool {
	if l.current == nil || l.current.Token.ID != id {
		return false
	}
	next := *l.current
	next.Token = fn(next.Token)
	return l.set(&next)
}

// Fill patches the official token with loaded data and drops the skeleton flag.
// A pinned target holding real data becomes claimable.
func (l *Lock) Fill(id string, fn func(domain.Token) domain.Token) Result {
	if l.current == nil || l.current.Token.ID != id {
		return Result{}
	}
	next := *l.current
	next.Token = fn(next.Token)
	next.Skeleton = false
	changed := l.set(&next)
	return Result{Changed: changed, Claim: l.needsClaim()}
}

func (l *Lock) adopt(rec domain.OfficialRecord) bool {
	next := domain.OfficialTarget{
		Provenance: domain.ProvenanceRemote,
		Stage:      domain.StagePersisted,
	}
	if l.cfg.Mint != "" {
		next.Provenance = domain.ProvenanceConfig
	}

	if l.current != nil && l.current.Token.ID == rec.Mint {
		// Same token: keep live market data, fill gaps from the record.
		next.Token = l.current.Token
		if next.Token.Name == "" || l.current.Skeleton {
			next.Token.Name = rec.Name
		}
		if next.Token.Symbol == "" || l.current.Skeleton {
			next.Token.Symbol = rec.Symbol
		}
		if rec.ImageURI != "" && (next.Token.ImageURL == "" || l.current.Skeleton) {
			next.Token.ImageURL = metadata.NormalizeURL(rec.ImageURI, 0)
		}
	} else {
		next.Token = tokenFromRecord(rec)
	}
	return l.set(&next)
}

func (l *Lock) needsClaim() bool {
	return l.current != nil && !l.current.Skeleton && l.current.Stage != domain.StagePersisted
}

func (l *Lock) skeleton() *domain.OfficialTarget {
	tok := domain.Token{
		ID:        l.cfg.Mint,
		Name:      domain.UnknownName,
		Symbol:    domain.UnknownSymbol,
		ImageURL:  metadata.Placeholder(l.cfg.Mint),
		CreatedAt: l.now(),
	}
	tok.Recompute()
	return &domain.OfficialTarget{
		Token:      tok,
		Provenance: domain.ProvenanceConfig,
		Stage:      domain.StageConfirmed,
		Skeleton:   true,
	}
}

// set replaces the target, applying the override image. Returns whether the value changed.
func (l *Lock) set(next *domain.OfficialTarget) bool {
	if next != nil && l.cfg.OverrideImage != "" {
		next.Token.ImageURL = l.cfg.OverrideImage
	}
	if equalTarget(l.current, next) {
		return false
	}
	l.current = next
	return true
}

func tokenFromRecord(rec domain.OfficialRecord) domain.Token {
	tok := domain.Token{
		ID:        rec.Mint,
		Name:      rec.Name,
		Symbol:    rec.Symbol,
		ImageURL:  metadata.Placeholder(rec.Mint),
		CreatedAt: rec.DetectedAt,
	}
	if rec.ImageURI != "" {
		tok.ImageURL = metadata.NormalizeURL(rec.ImageURI, 0)
	}
	tok.Recompute()
	return tok
}

func equalTarget(a, b *domain.OfficialTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Provenance == b.Provenance &&
		a.Stage == b.Stage &&
		a.Skeleton == b.Skeleton &&
		a.Token.ID == b.Token.ID &&
		a.Token.Name == b.Token.Name &&
		a.Token.Symbol == b.Token.Symbol &&
		a.Token.Description == b.Token.Description &&
		a.Token.Price == b.Token.Price &&
		a.Token.MarketCap == b.Token.MarketCap &&
		a.Token.Volume24h == b.Token.Volume24h &&
		a.Token.VSolInBondingCurve == b.Token.VSolInBondingCurve &&
		a.Token.ImageURL == b.Token.ImageURL &&
		a.Token.Complete == b.Token.Complete &&
		a.Token.CreatedAt.Equal(b.Token.CreatedAt)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "$"))
}

func normalizeSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		if n := normalize(s); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
