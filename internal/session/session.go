// Package session runs the stream-ingestion engine: it consumes the feed,
// classifies new tokens, batches trades and arbitrates the official target.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trend-scout/internal/aggregator"
	"trend-scout/internal/classify"
	"trend-scout/internal/dedup"
	"trend-scout/internal/domain"
	"trend-scout/internal/groups"
	"trend-scout/internal/metadata"
	"trend-scout/internal/notify"
	"trend-scout/internal/observability"
	"trend-scout/internal/price"
	"trend-scout/internal/pumpfun"
	"trend-scout/internal/pumpportal"
	"trend-scout/internal/storage"
	"trend-scout/internal/target"
)

// Default timings.
const (
	DefaultFlushInterval     = aggregator.DefaultFlushInterval
	DefaultReconcileInterval = 45 * time.Second
	DefaultCorrectionDelay   = time.Second
	DefaultRemoteTimeout     = 10 * time.Second
	DefaultCacheTimeout      = 2 * time.Second
)

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("session: already running")
	// ErrFeedClosed is returned when the feed stops delivering events on its own.
	ErrFeedClosed = errors.New("session: feed closed")
)

// Feed is the live event source.
type Feed interface {
	Start(ctx context.Context)
	Events() <-chan pumpportal.Event
	Status() pumpportal.Status
	SubscribeTokenTrade(mints ...string) error
	Close() error
}

// Resolver resolves display images for new tokens.
type Resolver interface {
	ResolveImage(ctx context.Context, mint, uri string) string
	ResolveOfficialImage(ctx context.Context, mint, uri string) string
	Preload(ctx context.Context, url string)
	Normalize(ref string, idx int) string
}

// PriceSource provides the current SOL price in USD.
type PriceSource interface {
	Price() float64
}

// Options configures a Session.
type Options struct {
	Feed       Feed                // required
	Resolver   Resolver            // required
	Coins      metadata.CoinSource // optional; enables the post-commit correction pass
	Price      PriceSource         // optional; nil uses price.DefaultSolPrice
	Classifier *classify.Classifier
	Groups     []domain.TrendGroup // seed groups; nil uses domain.DefaultGroups
	Target     target.Config

	Official storage.OfficialStore // optional remote authority
	Cache    storage.TargetCache   // optional durable mirror of the target
	Notifier notify.Notifier       // optional

	ClientID          string
	IdentityCap       int
	FlushInterval     time.Duration
	ReconcileInterval time.Duration
	CorrectionDelay   time.Duration
	Logger            zerolog.Logger
}

// Stats are aggregate counters shown with the groups.
type Stats struct {
	TotalProcessed   int64  `json:"totalProcessed"`
	DistinctEstimate uint64 `json:"distinctEstimate"`
	TradesFlushed    int64  `json:"tradesFlushed"`
	Tracked          int    `json:"tracked"`
}

// Snapshot is an immutable view of the session for the presentation layer.
type Snapshot struct {
	Groups       []domain.TrendGroup    `json:"groups"`
	Connection   pumpportal.Status      `json:"connection"`
	Stats        Stats                  `json:"stats"`
	SolPrice     float64                `json:"solPrice"`
	Official     *domain.OfficialTarget `json:"official"`
	TargetStatus domain.TargetStatus    `json:"targetStatus"`
}

// published is the state copied out of the loop after every mutation.
type published struct {
	groups   []domain.TrendGroup
	official *domain.OfficialTarget
	status   domain.TargetStatus
	stats    Stats
}

// Session owns every component. A single loop goroutine performs all mutations;
// asynchronous work posts continuations back to the loop.
type Session struct {
	feed       Feed
	resolver   Resolver
	coins      metadata.CoinSource
	prices     PriceSource
	classifier *classify.Classifier
	official   storage.OfficialStore
	cache      storage.TargetCache
	notifier   notify.Notifier
	clientID   string
	logger     zerolog.Logger

	flushInterval     time.Duration
	reconcileInterval time.Duration
	correctionDelay   time.Duration

	// Loop-owned state.
	seen      *dedup.Set
	agg       *aggregator.Aggregator
	store     *groups.Store
	lock      *target.Lock
	stats     Stats
	announced string
	settled   uint64 // claims completed
	hydrated  string // official mint whose data load was started

	posts   chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	stopped chan struct{}
	running atomic.Bool
	started bool

	mu  sync.RWMutex
	pub published
}

// New creates a Session. It does nothing until Run.
func New(opts Options) *Session {
	if opts.Classifier == nil {
		opts.Classifier = classify.New(nil)
	}
	if opts.Groups == nil {
		opts.Groups = domain.DefaultGroups()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = DefaultReconcileInterval
	}
	if opts.CorrectionDelay <= 0 {
		opts.CorrectionDelay = DefaultCorrectionDelay
	}

	s := &Session{
		feed:              opts.Feed,
		resolver:          opts.Resolver,
		coins:             opts.Coins,
		prices:            opts.Price,
		classifier:        opts.Classifier,
		official:          opts.Official,
		cache:             opts.Cache,
		notifier:          opts.Notifier,
		clientID:          opts.ClientID,
		logger:            opts.Logger.With().Str("component", "session").Logger(),
		flushInterval:     opts.FlushInterval,
		reconcileInterval: opts.ReconcileInterval,
		correctionDelay:   opts.CorrectionDelay,
		seen:              dedup.New(opts.IdentityCap),
		agg:               aggregator.New(),
		store:             groups.NewStore(opts.Groups),
		lock:              target.New(opts.Target),
		posts:             make(chan func()),
		done:              make(chan struct{}),
		stopped:           make(chan struct{}),
	}
	s.publish()
	return s
}

// Run drives the session until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return s.run(ctx)
}

// Close stops a running session and waits for it to finish.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, started := s.cancel, s.started
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.stopped
}

func (s *Session) run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.ctx, s.cancel, s.started = ctx, cancel, true
	s.mu.Unlock()

	defer func() {
		cancel()
		close(s.done)
		if err := s.feed.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("feed close")
		}
		s.wg.Wait()
		close(s.stopped)
		s.logger.Info().Msg("session stopped")
	}()

	s.restore(ctx)
	s.hydrate()
	s.publish()
	observability.SetTargetStatus(string(s.lock.Status()))

	if s.official != nil {
		s.reconcile()
		s.async(s.watchRemote)
	}
	s.feed.Start(ctx)

	flush := time.NewTicker(s.flushInterval)
	defer flush.Stop()
	reconcile := time.NewTicker(s.reconcileInterval)
	defer reconcile.Stop()

	s.logger.Info().
		Bool("pinned", s.lock.Pinned()).
		Dur("flush_interval", s.flushInterval).
		Dur("reconcile_interval", s.reconcileInterval).
		Bool("remote", s.official != nil).
		Msg("session started")

	events := s.feed.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrFeedClosed
			}
			s.handleEvent(ev)

		case fn := <-s.posts:
			fn()

		case <-flush.C:
			s.flush()

		case <-reconcile.C:
			if s.official != nil {
				s.reconcile()
			}
		}
	}
}

// Snapshot returns the current view, filtered by a case-insensitive search term.
func (s *Session) Snapshot(search string) Snapshot {
	s.mu.RLock()
	pub := s.pub
	s.mu.RUnlock()

	return Snapshot{
		Groups:       groups.Filter(pub.groups, search),
		Connection:   s.feed.Status(),
		Stats:        pub.stats,
		SolPrice:     s.solPrice(),
		Official:     pub.official,
		TargetStatus: pub.status,
	}
}

// post hands fn to the loop. Returns false once the loop has exited.
func (s *Session) post(fn func()) bool {
	select {
	case s.posts <- fn:
		return true
	case <-s.done:
		return false
	}
}

// async runs fn off the loop under the session context.
func (s *Session) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Session) handleEvent(ev pumpportal.Event) {
	switch ev.Kind {
	case pumpportal.EventCreate:
		if ev.Create != nil {
			s.handleCreate(*ev.Create)
		}
	case pumpportal.EventTrade:
		if ev.Trade != nil {
			s.agg.Add(*ev.Trade)
		}
	}
}

// handleCreate deduplicates and classifies synchronously, then resolves the
// image off the loop and commits when it returns.
func (s *Session) handleCreate(ev domain.CreateEvent) {
	if !s.seen.CheckAndMark(ev.Mint) {
		observability.RecordDuplicate()
		return
	}
	s.stats.TotalProcessed++
	observability.UpdateCacheSizes(s.seen.Len(), s.seen.Distinct())

	groupIDs := s.classifier.Classify(ev.Name, ev.Symbol)
	official := s.lock.Admits(ev.Mint, ev.Name, ev.Symbol)

	s.async(func(ctx context.Context) {
		var img string
		if official {
			img = s.resolver.ResolveOfficialImage(ctx, ev.Mint, ev.URI)
		} else {
			img = s.resolver.ResolveImage(ctx, ev.Mint, ev.URI)
		}
		s.resolver.Preload(ctx, img)
		s.post(func() { s.commit(ev, groupIDs, img) })
	})
}

func (s *Session) commit(ev domain.CreateEvent, groupIDs []string, img string) {
	if s.store.Contains(ev.Mint) {
		return
	}

	tok := newToken(ev, img, s.solPrice())

	if err := s.feed.SubscribeTokenTrade(ev.Mint); err != nil && !errors.Is(err, pumpportal.ErrNotConnected) {
		s.logger.Debug().Err(err).Str("mint", ev.Mint).Msg("trade subscription failed")
	}

	if s.store.AddToken(tok, groupIDs) {
		observability.RecordTokenAdmitted()
	}
	s.apply(s.lock.Offer(tok))
	s.publish()

	s.logger.Debug().
		Str("mint", tok.ID).
		Str("name", tok.Name).
		Strs("groups", groupIDs).
		Float64("market_cap", tok.MarketCap).
		Msg("token committed")

	if s.coins != nil {
		s.scheduleCorrection(ev.Mint)
	}
}

func newToken(ev domain.CreateEvent, img string, solPrice float64) domain.Token {
	tok := domain.Token{
		ID:                 ev.Mint,
		Name:               ev.Name,
		Symbol:             ev.Symbol,
		Description:        fmt.Sprintf("New launch on Pump.fun! Market Cap: %.2f SOL", ev.MarketCapSol),
		Price:              ev.MarketCapSol / domain.TokenSupply,
		MarketCap:          ev.MarketCapSol * solPrice,
		VSolInBondingCurve: ev.VSolInBondingCurve,
		ImageURL:           img,
		CreatedAt:          time.Now(),
	}
	if tok.Name == "" {
		tok.Name = domain.UnknownName
	}
	if tok.Symbol == "" {
		tok.Symbol = domain.UnknownSymbol
	}
	tok.Recompute()
	return tok
}

// flush applies consolidated trade deltas to the groups and the official target.
func (s *Session) flush() {
	deltas := s.agg.Flush(s.tracked)
	if deltas == nil {
		return
	}

	p := s.solPrice()
	groupsChanged := s.store.ApplyUpdates(deltas, p)
	targetChanged := s.lock.ApplyDeltas(deltas, p)
	if !groupsChanged && !targetChanged {
		return
	}

	var n int
	for _, d := range deltas {
		n += d.Trades
	}
	s.stats.TradesFlushed += int64(n)
	observability.RecordFlush(n)

	if targetChanged {
		s.saveTarget()
	}
	s.publish()
}

func (s *Session) tracked(mint string) bool {
	return mint == s.lock.ID() || s.store.Contains(mint)
}

// scheduleCorrection refreshes a committed token from the upstream API after a delay.
func (s *Session) scheduleCorrection(mint string) {
	s.async(func(ctx context.Context) {
		timer := time.NewTimer(s.correctionDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		coin, err := s.coins.Coin(ctx, mint)
		observability.RecordExternalCall("pumpfun", "coin", time.Since(start).Seconds(), err)
		if err != nil {
			if !errors.Is(err, pumpfun.ErrNotFound) && ctx.Err() == nil {
				s.logger.Debug().Err(err).Str("mint", mint).Msg("correction lookup failed")
			}
			return
		}
		s.post(func() { s.correct(mint, coin) })
	})
}

func (s *Session) correct(mint string, coin *pumpfun.Coin) {
	fix := func(t domain.Token) domain.Token {
		if coin.USDMarketCap > 0 {
			t.MarketCap = coin.USDMarketCap
		}
		if coin.TotalVolume > 0 {
			t.Volume24h = coin.TotalVolume
		}
		if coin.ImageURI != "" {
			t.ImageURL = s.resolver.Normalize(coin.ImageURI, 0)
		}
		t.Complete = t.Complete || coin.Complete
		t.Recompute()
		return t
	}

	groupsChanged := s.store.Patch(mint, fix)
	targetChanged := s.lock.Patch(mint, fix)
	if targetChanged {
		s.saveTarget()
	}
	if groupsChanged || targetChanged {
		s.publish()
	}
}

func (s *Session) solPrice() float64 {
	if s.prices == nil {
		return price.DefaultSolPrice
	}
	if p := s.prices.Price(); p > 0 {
		return p
	}
	return price.DefaultSolPrice
}

// publish copies loop state out for readers.
func (s *Session) publish() {
	stats := s.stats
	stats.DistinctEstimate = s.seen.Distinct()
	stats.Tracked = s.seen.Len()

	s.mu.Lock()
	s.pub = published{
		groups:   s.store.Groups(),
		official: s.lock.Current(),
		status:   s.lock.Status(),
		stats:    stats,
	}
	s.mu.Unlock()
}
