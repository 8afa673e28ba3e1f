package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trend-scout/internal/pumpfun"
)

// Default timeouts.
const (
	DefaultFetchTimeout   = 3 * time.Second
	DefaultPreloadTimeout = 2 * time.Second
)

// Metadata is the off-chain JSON document referenced by a token's uri.
type Metadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Twitter     string `json:"twitter,omitempty"`
	Telegram    string `json:"telegram,omitempty"`
	Website     string `json:"website,omitempty"`
}

// CoinSource provides single-token info from the upstream API.
type CoinSource interface {
	Coin(ctx context.Context, mint string) (*pumpfun.Coin, error)
}

// Options configures Resolver.
type Options struct {
	HTTPClient     *http.Client
	Gateways       []string
	Coins          CoinSource // optional; enables the API leg of ResolveOfficialImage
	OverrideImage  string     // always used for the official token when set
	FetchTimeout   time.Duration
	PreloadTimeout time.Duration
	Logger         zerolog.Logger
}

// Resolver turns metadata references into displayable image URLs.
type Resolver struct {
	client         *http.Client
	gateways       []string
	coins          CoinSource
	overrideImage  string
	fetchTimeout   time.Duration
	preloadTimeout time.Duration
	logger         zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		client:         opts.HTTPClient,
		gateways:       opts.Gateways,
		coins:          opts.Coins,
		overrideImage:  opts.OverrideImage,
		fetchTimeout:   opts.FetchTimeout,
		preloadTimeout: opts.PreloadTimeout,
		logger:         opts.Logger.With().Str("component", "metadata").Logger(),
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if len(r.gateways) == 0 {
		r.gateways = DefaultGateways
	}
	if r.fetchTimeout <= 0 {
		r.fetchTimeout = DefaultFetchTimeout
	}
	if r.preloadTimeout <= 0 {
		r.preloadTimeout = DefaultPreloadTimeout
	}
	return r
}

// Normalize rewrites ref onto the resolver's gateway at idx.
func (r *Resolver) Normalize(ref string, idx int) string {
	return normalize(r.gateways, ref, idx)
}

// FetchJSON requests uri from every gateway concurrently and returns the first
// document that decodes. Remaining requests are cancelled. Returns nil when all fail.
func (r *Resolver) FetchJSON(ctx context.Context, uri string) *Metadata {
	if uri == "" {
		return nil
	}

	urls := r.candidateURLs(uri)
	if len(urls) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *Metadata, len(urls))
	for _, u := range urls {
		go func(u string) {
			md, err := r.fetchOne(ctx, u)
			if err != nil {
				r.logger.Debug().Err(err).Str("url", u).Msg("gateway fetch failed")
				results <- nil
				return
			}
			results <- md
		}(u)
	}

	for range urls {
		if md := <-results; md != nil {
			return md
		}
	}
	return nil
}

func (r *Resolver) candidateURLs(uri string) []string {
	seen := make(map[string]bool, len(r.gateways))
	var urls []string
	for i := range r.gateways {
		u := r.Normalize(uri, i)
		if !isFetchable(u) || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func (r *Resolver) fetchOne(ctx context.Context, u string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}

// ResolveImage returns the normalized image from the metadata at uri,
// or the placeholder for mint.
func (r *Resolver) ResolveImage(ctx context.Context, mint, uri string) string {
	if md := r.FetchJSON(ctx, uri); md != nil && md.Image != "" {
		return r.Normalize(md.Image, 0)
	}
	return Placeholder(mint)
}

// ResolveOfficialImage resolves the official token's image. The upstream API and
// the metadata document are fetched concurrently; the API image is preferred.
// A configured override always wins.
func (r *Resolver) ResolveOfficialImage(ctx context.Context, mint, uri string) string {
	if r.overrideImage != "" {
		return r.overrideImage
	}

	var (
		apiImage string
		md       *Metadata
	)

	var g errgroup.Group
	g.Go(func() error {
		md = r.FetchJSON(ctx, uri)
		return nil
	})
	if r.coins != nil {
		g.Go(func() error {
			coin, err := r.coins.Coin(ctx, mint)
			if err != nil {
				if !errors.Is(err, pumpfun.ErrNotFound) {
					r.logger.Debug().Err(err).Str("mint", mint).Msg("coin lookup failed")
				}
				return nil
			}
			apiImage = coin.ImageURI
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case apiImage != "":
		return r.Normalize(apiImage, 0)
	case md != nil && md.Image != "":
		return r.Normalize(md.Image, 0)
	default:
		return Placeholder(mint)
	}
}

// Preload warms the image at u, giving up after the preload timeout.
// The outcome is ignored.
func (r *Resolver) Preload(ctx context.Context, u string) {
	if !isFetchable(u) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.preloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
