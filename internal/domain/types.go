package domain

import "time"

// ModelTier identifies one recognition model quality level.
type ModelTier string

const (
	// ModelTierCompact is the small, fastest English model ("tiny").
	ModelTierCompact ModelTier = "tiny"
	// ModelTierStandard is the balanced English model ("base").
	ModelTierStandard ModelTier = "base"
)

// ModelStatus reports which model file currently backs transcription.
// It is computed fresh from the filesystem on every query; file presence
// is the only source of truth.
type ModelStatus struct {
	ActiveTier   ModelTier `json:"activeTier,omitempty"`
	IsDownloaded bool      `json:"isDownloaded"`
	ModelPath    string    `json:"modelPath,omitempty"`
	SizeMB       float64   `json:"sizeMb,omitempty"`
}

// TranscriptionResult is the outcome of one transcription request.
type TranscriptionResult struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	LogLevel     string `json:"logLevel"`
	KeepHistory  bool   `json:"keepHistory"`
	HistoryLimit int    `json:"historyLimit"`
}

// TranscriptRecord is one stored transcript history entry.
type TranscriptRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tier      ModelTier `json:"tier"`
	TookMs    int64     `json:"tookMs"`
	CreatedAt time.Time `json:"createdAt"`
}
