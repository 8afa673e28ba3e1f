package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-scout/internal/config"
	"trend-scout/internal/notify"
	"trend-scout/internal/price"
	"trend-scout/internal/pumpfun"
	"trend-scout/internal/pumpportal"
	"trend-scout/internal/storage"
	chstore "trend-scout/internal/storage/clickhouse"
	pgstore "trend-scout/internal/storage/postgres"
	rediscache "trend-scout/internal/storage/redis"
	"trend-scout/internal/storage/sqlite"
	"trend-scout/internal/target"
)

const notifyTimeout = 10 * time.Second

// backends holds the storage collaborators selected by configuration.
// Any of them may be nil.
type backends struct {
	official storage.OfficialStore
	history  storage.FeedStore
	cache    storage.TargetCache
	closers  []func()
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the remote store, the history sink (when withHistory)
// and the local target cache (when withCache).
func openBackends(ctx context.Context, cfg *config.Config, withHistory, withCache bool, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	var pool *pgstore.Pool
	if cfg.Remote.PostgresDSN != "" {
		p, err := pgstore.NewPool(ctx, cfg.Remote.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to remote store: %w", err)
		}
		pool = p
		b.closers = append(b.closers, pool.Close)
		b.official = pgstore.NewOfficialStore(pool)
		logger.Info().Msg("remote store connected")
	}

	if withHistory {
		switch cfg.History.Backend {
		case config.BackendPostgres:
			if pool == nil {
				b.Close()
				return nil, errors.New("history backend postgres requires a remote store")
			}
			b.history = pgstore.NewFeedStore(pool)
		case config.BackendClickhouse:
			conn, err := chstore.NewConn(ctx, cfg.History.ClickhouseDSN)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("connect to clickhouse: %w", err)
			}
			b.closers = append(b.closers, func() { conn.Close() })
			b.history = chstore.NewFeedStore(conn)
		}
		if b.history != nil {
			logger.Info().Str("backend", cfg.History.Backend).Msg("history sink ready")
		}
	}

	if withCache {
		switch cfg.Cache.Backend {
		case config.BackendSQLite:
			c, err := sqlite.Open(cfg.Cache.SQLitePath)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.closers = append(b.closers, func() { c.Close() })
			b.cache = c
		case config.BackendRedis:
			c, client, err := rediscache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.closers = append(b.closers, func() { client.Close() })
			b.cache = c
			if cfg.Cache.Key != "" {
				b.cache = rediscache.New(client, cfg.Cache.Key)
			}
		}
		if b.cache != nil {
			logger.Info().Str("backend", cfg.Cache.Backend).Msg("target cache ready")
		}
	}

	return b, nil
}

func newFeed(cfg *config.Config, logger zerolog.Logger) *pumpportal.Client {
	fc := pumpportal.DefaultConfig()
	fc.ReconnectDelay = cfg.Feed.ReconnectDelay
	fc.DialRetryDelay = cfg.Feed.DialRetryDelay
	if cfg.Feed.PingInterval > 0 {
		fc.PingInterval = cfg.Feed.PingInterval
	}
	fc.ReadTimeout = cfg.Feed.ReadTimeout
	if cfg.Groups.MaxTradeKeys > 0 {
		fc.MaxTradeKeys = cfg.Groups.MaxTradeKeys
	}
	return pumpportal.NewClient(cfg.Feed.Endpoint, &fc, logger)
}

func newAPI(cfg *config.Config) *pumpfun.Client {
	return pumpfun.NewClient(cfg.API.BaseURL,
		pumpfun.WithTimeout(cfg.API.Timeout),
		pumpfun.WithMaxRetries(cfg.API.MaxRetries),
		pumpfun.WithRateLimit(cfg.API.RPS, cfg.API.Burst),
	)
}

func newOracle(cfg *config.Config, logger zerolog.Logger) (*price.Oracle, error) {
	var source price.Source
	if !cfg.Price.Disabled {
		js, err := price.NewJupiterSource(cfg.Price.JupiterURL)
		if err != nil {
			return nil, err
		}
		source = js
	}
	return price.NewOracle(source, cfg.Price.Initial, cfg.Price.RefreshInterval, logger), nil
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify.TelegramToken == "" {
		return notify.Nop{}, nil
	}
	links := notify.Links{
		Twitter:  cfg.Target.Socials.Twitter,
		Telegram: cfg.Target.Socials.Telegram,
		Website:  cfg.Target.Socials.Website,
	}
	return notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, links,
		&http.Client{Timeout: notifyTimeout})
}

func targetConfig(cfg *config.Config) target.Config {
	return target.Config{
		Mint:          cfg.Target.Mint,
		Names:         cfg.Target.Names,
		Symbols:       cfg.Target.Symbols,
		OverrideImage: cfg.Target.Image,
	}
}

// clientID returns id, or a random one when empty.
func clientID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
