package domain

import "time"

// Provenance records how the official target was resolved.
type Provenance string

const (
	ProvenanceConfig    Provenance = "config"    // pinned mint address from configuration
	ProvenanceHeuristic Provenance = "heuristic" // name/symbol match on a creation event
	ProvenanceRemote    Provenance = "remote"    // record from the shared remote store
	ProvenanceCache     Provenance = "cache"     // restored from the durable local cache
)

// Stage is the lifecycle position of the official target.
type Stage string

const (
	StageTentative Stage = "tentative"
	StageConfirmed Stage = "confirmed"
	StagePersisted Stage = "persisted"
)

// TargetStatus summarizes the hunt for the presentation layer.
type TargetStatus string

const (
	StatusHunting   TargetStatus = "hunting"
	StatusTentative TargetStatus = "tentative"
	StatusConfirmed TargetStatus = "confirmed"
	StatusLocked    TargetStatus = "locked"
)

// OfficialTarget is the single distinguished token of a session.
type OfficialTarget struct {
	Token      Token      `json:"token"`
	Provenance Provenance `json:"provenance"`
	Stage      Stage      `json:"stage"`
	Skeleton   bool       `json:"skeleton"` // placeholder synthesized from a configured address
}

// OfficialRecord is a row of the remote official_token table.
type OfficialRecord struct {
	Mint       string    `json:"mint"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	ImageURI   string    `json:"image_uri"`
	DetectedAt time.Time `json:"detected_at"`
	DetectedBy string    `json:"detected_by"`
}

// FeedRecord is a row of the append-only stream_feed history.
type FeedRecord struct {
	Mint      string    `json:"mint"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}
