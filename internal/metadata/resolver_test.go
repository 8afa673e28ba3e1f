package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-scout/internal/pumpfun"
)

type fakeCoins struct {
	coin *pumpfun.Coin
	err  error
}

func (f fakeCoins) Coin(ctx context.Context, mint string) (*pumpfun.Coin, error) {
	return f.coin, f.err
}

func gatewayServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, srv.URL + "/ipfs/"
}

func jsonHandler(body interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

func TestFetchJSON_FirstSuccessWins(t *testing.T) {
	_, slow := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	_, failing := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, good := gatewayServer(t, jsonHandler(map[string]string{"name": "Lobster King", "image": "ipfs://QmImg"}))

	r := NewResolver(Options{Gateways: []string{slow, failing, good}})

	start := time.Now()
	md := r.FetchJSON(context.Background(), "ipfs://QmMeta")
	require.NotNil(t, md)
	assert.Equal(t, "Lobster King", md.Name)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchJSON_AllFail(t *testing.T) {
	_, failing := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, garbage := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	r := NewResolver(Options{Gateways: []string{failing, garbage}})
	assert.Nil(t, r.FetchJSON(context.Background(), "QmMeta"))
	assert.Nil(t, r.FetchJSON(context.Background(), ""))
}

func TestFetchJSON_Timeout(t *testing.T) {
	_, hanging := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	r := NewResolver(Options{Gateways: []string{hanging}, FetchTimeout: 50 * time.Millisecond})
	start := time.Now()
	assert.Nil(t, r.FetchJSON(context.Background(), "QmMeta"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveImage(t *testing.T) {
	_, gw := gatewayServer(t, jsonHandler(map[string]string{"image": "ipfs://QmImg"}))
	r := NewResolver(Options{Gateways: []string{gw}})

	assert.Equal(t, gw+"QmImg", r.ResolveImage(context.Background(), "M1", "ipfs://QmMeta"))
}

func TestResolveImage_Placeholder(t *testing.T) {
	_, gw := gatewayServer(t, jsonHandler(map[string]string{"name": "no image"}))
	r := NewResolver(Options{Gateways: []string{gw}})

	assert.Equal(t, Placeholder("M1"), r.ResolveImage(context.Background(), "M1", "ipfs://QmMeta"))
	assert.Equal(t, Placeholder("M2"), r.ResolveImage(context.Background(), "M2", ""))
}

func TestResolveOfficialImage(t *testing.T) {
	_, gw := gatewayServer(t, jsonHandler(map[string]string{"image": "ipfs://QmMetaImg"}))

	t.Run("api image preferred", func(t *testing.T) {
		r := NewResolver(Options{
			Gateways: []string{gw},
			Coins:    fakeCoins{coin: &pumpfun.Coin{Mint: "M1", ImageURI: "ipfs://QmApiImg"}},
		})
		assert.Equal(t, gw+"QmApiImg", r.ResolveOfficialImage(context.Background(), "M1", "ipfs://QmMeta"))
	})

	t.Run("metadata fallback", func(t *testing.T) {
		r := NewResolver(Options{
			Gateways: []string{gw},
			Coins:    fakeCoins{err: errors.New("boom")},
		})
		assert.Equal(t, gw+"QmMetaImg", r.ResolveOfficialImage(context.Background(), "M1", "ipfs://QmMeta"))
	})

	t.Run("placeholder", func(t *testing.T) {
		r := NewResolver(Options{Gateways: []string{gw}, Coins: fakeCoins{err: pumpfun.ErrNotFound}})
		assert.Equal(t, Placeholder("M1"), r.ResolveOfficialImage(context.Background(), "M1", ""))
	})

	t.Run("override wins", func(t *testing.T) {
		r := NewResolver(Options{
			Gateways:      []string{gw},
			Coins:         fakeCoins{coin: &pumpfun.Coin{Mint: "M1", ImageURI: "ipfs://QmApiImg"}},
			OverrideImage: "/clawseek_logo.jpg",
		})
		assert.Equal(t, "/clawseek_logo.jpg", r.ResolveOfficialImage(context.Background(), "M1", "ipfs://QmMeta"))
	})
}

func TestPreload_Bounded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := NewResolver(Options{PreloadTimeout: 50 * time.Millisecond})
	start := time.Now()
	r.Preload(context.Background(), srv.URL+"/img.png")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), hits.Load())

	r.Preload(context.Background(), "/local.png")
	assert.Equal(t, int32(1), hits.Load(), "local paths are not fetched")
}
