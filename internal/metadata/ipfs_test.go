package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		idx  int
		want string
	}{
		{"empty", "", 0, ""},
		{"ipfs scheme", "ipfs://QmHash", 0, "https://pump.mypinata.cloud/ipfs/QmHash"},
		{"ipfs scheme second gateway", "ipfs://QmHash", 1, "https://cf-ipfs.com/ipfs/QmHash"},
		{"gateway path rewritten", "https://ipfs.io/ipfs/QmHash", 2, "https://gateway.pinata.cloud/ipfs/QmHash"},
		{"any host with ipfs path", "https://example.com/ipfs/QmHash/1.png", 0, "https://pump.mypinata.cloud/ipfs/QmHash/1.png"},
		{"bare cid", "QmHash", 3, "https://ipfs.io/ipfs/QmHash"},
		{"out of range index", "QmHash", 9, "https://pump.mypinata.cloud/ipfs/QmHash"},
		{"negative index", "QmHash", -1, "https://pump.mypinata.cloud/ipfs/QmHash"},
		{"local path", "/clawseek_logo.jpg", 0, "/clawseek_logo.jpg"},
		{"data url", "data:image/png;base64,AAAA", 0, "data:image/png;base64,AAAA"},
		{"blob url", "blob:https://x/y", 0, "blob:https://x/y"},
		{"plain https", "https://arweave.net/abc", 0, "https://arweave.net/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.ref, tt.idx))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "https://api.dicebear.com/7.x/identicon/svg?seed=M1", Placeholder("M1"))
	assert.Equal(t, Placeholder("M1"), Placeholder("M1"))
}
