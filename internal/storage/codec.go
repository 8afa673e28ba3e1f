package storage

import (
	"encoding/json"
	"fmt"

	"trend-scout/internal/domain"
)

// EncodeTarget serializes a target for key-value caches.
func EncodeTarget(t *domain.OfficialTarget) ([]byte, error) {
	if t == nil || t.Token.ID == "" {
		return nil, ErrInvalidInput
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode target: %w", err)
	}
	return b, nil
}

// DecodeTarget parses a cached target. A record without a token id is rejected.
func DecodeTarget(b []byte) (*domain.OfficialTarget, error) {
	var t domain.OfficialTarget
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}
	if t.Token.ID == "" {
		return nil, fmt.Errorf("decode target: %w", ErrInvalidInput)
	}
	return &t, nil
}
