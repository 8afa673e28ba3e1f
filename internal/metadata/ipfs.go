// Package metadata resolves token metadata and images from IPFS gateways.
package metadata

import "strings"

// DefaultGateways are tried in order of preference.
var DefaultGateways = []string{
	"https://pump.mypinata.cloud/ipfs/",
	"https://cf-ipfs.com/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://ipfs.io/ipfs/",
}

// PlaceholderBase is the deterministic identicon service used when no image resolves.
const PlaceholderBase = "https://api.dicebear.com/7.x/identicon/svg?seed="

// Placeholder returns the deterministic fallback image for mint.
func Placeholder(mint string) string {
	return PlaceholderBase + mint
}

// NormalizeURL rewrites an IPFS reference onto DefaultGateways[gatewayIndex].
//
//	ipfs://CID            -> gateway + CID
//	https://host/ipfs/CID -> gateway + CID
//	CID                   -> gateway + CID
//
// Local paths, data: and blob: URLs and other http(s) URLs are returned unchanged.
// An out-of-range index selects the first gateway.
func NormalizeURL(ref string, gatewayIndex int) string {
	return normalize(DefaultGateways, ref, gatewayIndex)
}

func normalize(gateways []string, ref string, idx int) string {
	if ref == "" {
		return ""
	}
	gateway := gatewayAt(gateways, idx)

	clean := ref
	switch {
	case strings.HasPrefix(clean, "ipfs://"):
		clean = strings.TrimPrefix(clean, "ipfs://")
	case strings.Contains(clean, "/ipfs/"):
		clean = clean[strings.Index(clean, "/ipfs/")+len("/ipfs/"):]
	}

	if strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "data:") || strings.HasPrefix(clean, "blob:") {
		return clean
	}
	if !strings.HasPrefix(clean, "http") {
		return gateway + clean
	}
	return clean
}

func gatewayAt(gateways []string, idx int) string {
	if len(gateways) == 0 {
		gateways = DefaultGateways
	}
	if idx < 0 || idx >= len(gateways) {
		idx = 0
	}
	return gateways[idx]
}

// isFetchable reports whether u can be requested over the network.
func isFetchable(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
