package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"trend-scout/internal/dedup"
	"trend-scout/internal/domain"
	"trend-scout/internal/notify"
	"trend-scout/internal/observability"
	"trend-scout/internal/pumpportal"
	"trend-scout/internal/storage"
	"trend-scout/internal/target"
)

// HunterOptions configures a Hunter.
type HunterOptions struct {
	Feed        Feed                  // required
	Official    storage.OfficialStore // required
	History     storage.FeedStore     // optional; receives every creation event
	Target      target.Config
	Notifier    notify.Notifier
	ClientID    string
	IdentityCap int
	Logger      zerolog.Logger
}

// Hunter is the headless recorder: it writes every creation event to the
// history sink and claims the first matching token while no official record exists.
type Hunter struct {
	feed     Feed
	official storage.OfficialStore
	history  storage.FeedStore
	notifier notify.Notifier
	clientID string
	logger   zerolog.Logger

	seen     *dedup.Set
	lock     *target.Lock
	locked   bool
	recorded int64
}

// NewHunter creates a Hunter.
func NewHunter(opts HunterOptions) *Hunter {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	return &Hunter{
		feed:     opts.Feed,
		official: opts.Official,
		history:  opts.History,
		notifier: opts.Notifier,
		clientID: opts.ClientID,
		logger:   opts.Logger.With().Str("component", "hunter").Logger(),
		seen:     dedup.New(opts.IdentityCap),
		lock:     target.New(opts.Target),
	}
}

// Locked reports whether an official record exists.
func (h *Hunter) Locked() bool {
	return h.locked
}

// Recorded returns the number of history rows written.
func (h *Hunter) Recorded() int64 {
	return h.recorded
}

// Run consumes the feed until ctx is cancelled.
func (h *Hunter) Run(ctx context.Context) error {
	defer h.feed.Close()

	if err := h.checkExisting(ctx); err != nil {
		return err
	}
	h.feed.Start(ctx)

	events := h.feed.Events()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Int64("recorded", h.recorded).Bool("locked", h.locked).Msg("hunter stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrFeedClosed
			}
			if ev.Kind == pumpportal.EventCreate && ev.Create != nil {
				h.handleCreate(ctx, *ev.Create)
			}
		}
	}
}

func (h *Hunter) checkExisting(ctx context.Context) error {
	rec, err := h.official.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.logger.Info().Msg("no official record, hunting")
		return nil
	case err != nil:
		return err
	}
	h.lock.Reconcile(rec)
	h.locked = true
	h.logger.Info().Str("mint", rec.Mint).Str("name", rec.Name).Msg("official record exists, recording only")
	return nil
}

func (h *Hunter) handleCreate(ctx context.Context, ev domain.CreateEvent) {
	if !h.seen.CheckAndMark(ev.Mint) {
		observability.RecordDuplicate()
		return
	}
	h.record(ctx, ev)

	if h.locked || !h.lock.Admits(ev.Mint, ev.Name, ev.Symbol) {
		return
	}

	tok := newToken(ev, "", 0)
	tok.Name, tok.Symbol = ev.Name, ev.Symbol
	h.lock.Offer(tok)
	rec, ok := h.lock.BeginClaim()
	if !ok {
		return
	}
	rec.DetectedBy = h.clientID

	got, won, err := h.official.ClaimIfEmpty(ctx, &rec)
	if err != nil {
		h.lock.EndClaim(nil)
		h.logger.Warn().Err(err).Str("mint", ev.Mint).Msg("claim failed, still hunting")
		return
	}
	h.lock.EndClaim(got)
	h.locked = true

	if !won {
		h.logger.Info().Str("mint", got.Mint).Msg("another client claimed first")
		return
	}
	h.logger.Info().Str("mint", got.Mint).Str("name", got.Name).Str("symbol", got.Symbol).Msg("target locked")
	if cur := h.lock.Current(); cur != nil {
		if err := h.notifier.TargetLocked(ctx, *cur); err != nil {
			h.logger.Warn().Err(err).Msg("lock announcement failed")
		}
	}
}

func (h *Hunter) record(ctx context.Context, ev domain.CreateEvent) {
	if h.history == nil {
		return
	}
	start := time.Now()
	err := h.history.Insert(ctx, &domain.FeedRecord{
		Mint:      ev.Mint,
		Name:      ev.Name,
		Symbol:    ev.Symbol,
		URI:       ev.URI,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return
	}
	observability.RecordExternalCall("history", "insert", time.Since(start).Seconds(), err)
	if err != nil {
		h.logger.Warn().Err(err).Str("mint", ev.Mint).Msg("history insert failed")
		return
	}
	h.recorded++
}
