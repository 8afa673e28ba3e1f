package session

import (
	"context"
	"errors"
	"time"

	"trend-scout/internal/domain"
	"trend-scout/internal/metadata"
	"trend-scout/internal/observability"
	"trend-scout/internal/pumpfun"
	"trend-scout/internal/pumpportal"
	"trend-scout/internal/storage"
	"trend-scout/internal/target"
)

// restore adopts the cached target, clearing the cache when it no longer
// satisfies the targeting rule.
func (s *Session) restore(ctx context.Context) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultCacheTimeout)
	defer cancel()

	cached, err := s.cache.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return
	case err != nil:
		s.logger.Warn().Err(err).Msg("target cache load failed")
		return
	}

	if !s.lock.Restore(cached) {
		s.logger.Info().Str("mint", cached.Token.ID).Msg("cached target is stale, clearing")
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("target cache clear failed")
		}
		return
	}
	s.logger.Info().Str("mint", cached.Token.ID).Str("stage", string(cached.Stage)).Msg("restored cached target")
}

// reconcile fetches the remote latest record and applies it on the loop.
// A failed query leaves the target untouched, as does a result read before a
// claim settled.
func (s *Session) reconcile() {
	settled := s.settled
	s.async(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
		defer cancel()

		start := time.Now()
		rec, err := s.official.Latest(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			rec, err = nil, nil
		}
		observability.RecordExternalCall("remote", "latest", time.Since(start).Seconds(), err)
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("remote reconciliation failed")
			}
			return
		}
		s.post(func() {
			if s.settled != settled {
				return
			}
			s.apply(s.lock.Reconcile(rec))
		})
	})
}

// watchRemote applies pushed inserts until the session stops. A lost
// subscription is re-established after the reconcile interval, followed by a
// reconciliation to cover inserts missed meanwhile.
func (s *Session) watchRemote(ctx context.Context) {
	lost := false
	for {
		ch, err := s.official.Subscribe(ctx)
		if err == nil {
			if lost {
				s.post(s.reconcile)
			}
			for rec := range ch {
				rec := rec
				s.post(func() { s.apply(s.lock.RemoteInsert(rec)) })
			}
		}
		if ctx.Err() != nil {
			return
		}
		lost = true
		s.logger.Warn().Err(err).Dur("retry_in", s.reconcileInterval).Msg("remote subscription lost")

		timer := time.NewTimer(s.reconcileInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// apply reacts to a lock transition.
func (s *Session) apply(res target.Result) {
	if res.Changed {
		s.targetChanged()
	}
	if res.Claim {
		s.claim()
	}
}

func (s *Session) targetChanged() {
	cur := s.lock.Current()
	status := s.lock.Status()

	observability.SetTargetStatus(string(status))
	if cur != nil {
		observability.RecordTargetChange(string(cur.Provenance))
		s.logger.Info().
			Str("mint", cur.Token.ID).
			Str("provenance", string(cur.Provenance)).
			Str("status", string(status)).
			Msg("official target updated")
	} else {
		observability.RecordTargetChange("cleared")
		s.logger.Info().Msg("official target cleared")
	}

	s.saveTarget()
	s.hydrate()
	s.publish()

	if status == domain.StatusLocked && cur != nil && cur.Token.ID != s.announced {
		s.announced = cur.Token.ID
		locked := *cur
		s.async(func(ctx context.Context) {
			if err := s.notifier.TargetLocked(ctx, locked); err != nil {
				s.logger.Warn().Err(err).Str("mint", locked.Token.ID).Msg("lock announcement failed")
			}
		})
	}
}

// hydrate loads data for an official token that never passed through commit:
// a pinned mint created before startup, or a remote record for a mint this
// session did not see. It subscribes to its trades and fills the token from
// the upstream API and the official image chain.
func (s *Session) hydrate() {
	cur := s.lock.Current()
	if cur == nil || cur.Token.ID == s.hydrated || s.store.Contains(cur.Token.ID) {
		return
	}
	mint := cur.Token.ID
	s.hydrated = mint

	if err := s.feed.SubscribeTokenTrade(mint); err != nil && !errors.Is(err, pumpportal.ErrNotConnected) {
		s.logger.Debug().Err(err).Str("mint", mint).Msg("official trade subscription failed")
	}

	s.async(func(ctx context.Context) {
		var (
			coin *pumpfun.Coin
			uri  string
		)
		if s.coins != nil {
			start := time.Now()
			c, err := s.coins.Coin(ctx, mint)
			observability.RecordExternalCall("pumpfun", "coin", time.Since(start).Seconds(), err)
			switch {
			case err == nil:
				coin, uri = c, c.MetadataURI
			case !errors.Is(err, pumpfun.ErrNotFound) && ctx.Err() == nil:
				s.logger.Warn().Err(err).Str("mint", mint).Msg("official token lookup failed")
			}
		}
		img := s.resolver.ResolveOfficialImage(ctx, mint, uri)
		if img == metadata.Placeholder(mint) {
			img = ""
		}
		s.resolver.Preload(ctx, img)
		s.post(func() { s.fill(mint, coin, img) })
	})
}

// fill applies hydrated data. The skeleton flag is dropped once the API has
// answered for the mint.
func (s *Session) fill(mint string, coin *pumpfun.Coin, img string) {
	fix := func(t domain.Token) domain.Token {
		if coin != nil {
			if coin.Name != "" && (t.Name == "" || t.Name == domain.UnknownName) {
				t.Name = coin.Name
			}
			if coin.Symbol != "" && (t.Symbol == "" || t.Symbol == domain.UnknownSymbol) {
				t.Symbol = coin.Symbol
			}
			if coin.Description != "" && t.Description == "" {
				t.Description = coin.Description
			}
			if coin.USDMarketCap > 0 {
				t.MarketCap = coin.USDMarketCap
			}
			if coin.MarketCap > 0 {
				t.Price = coin.MarketCap / domain.TokenSupply
			}
			if coin.TotalVolume > 0 {
				t.Volume24h = coin.TotalVolume
			}
			t.Complete = t.Complete || coin.Complete
		}
		if img != "" {
			t.ImageURL = img
		}
		t.Recompute()
		return t
	}

	if coin != nil {
		s.apply(s.lock.Fill(mint, fix))
		return
	}
	if s.lock.Patch(mint, fix) {
		s.saveTarget()
		s.publish()
	}
}

// claim writes a heuristic or pinned target to the remote store unless a record
// already exists. At most one claim runs at a time.
func (s *Session) claim() {
	if s.official == nil {
		return
	}
	rec, ok := s.lock.BeginClaim()
	if !ok {
		return
	}
	rec.DetectedBy = s.clientID

	s.async(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, DefaultRemoteTimeout)
		defer cancel()

		start := time.Now()
		got, won, err := s.official.ClaimIfEmpty(ctx, &rec)
		observability.RecordExternalCall("remote", "claim", time.Since(start).Seconds(), err)
		if err != nil {
			s.logger.Warn().Err(err).Str("mint", rec.Mint).Msg("claim failed")
			got = nil
		} else if !won {
			s.logger.Info().Str("mint", got.Mint).Str("detected_by", got.DetectedBy).Msg("deferring to existing official record")
		}
		s.post(func() {
			s.settled++
			s.apply(s.lock.EndClaim(got))
		})
	})
}

// saveTarget mirrors the in-memory target into the durable cache.
func (s *Session) saveTarget() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, DefaultCacheTimeout)
	defer cancel()

	var err error
	if cur := s.lock.Current(); cur != nil {
		err = s.cache.Save(ctx, cur)
	} else {
		err = s.cache.Clear(ctx)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("target cache write failed")
	}
}
