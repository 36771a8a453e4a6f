package domain

import "time"

// ModelEventType classifies messages emitted by model lifecycle operations.
type ModelEventType string

const (
	ModelEventDownloadProgress ModelEventType = "download_progress"
	ModelEventDownloadDone     ModelEventType = "download_done"
	ModelEventDownloadFailed   ModelEventType = "download_failed"
	ModelEventModelDeleted     ModelEventType = "model_deleted"
	ModelEventTranscriptReady  ModelEventType = "transcript_ready"
)

// ModelEvent is a sequenced payload consumed by UI subscribers.
type ModelEvent struct {
	Seq        int64          `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       ModelEventType `json:"type"`
	Tier       ModelTier      `json:"tier,omitempty"`
	Message    string         `json:"message,omitempty"`
	Percent    int            `json:"percent,omitempty"`
	BytesDone  int64          `json:"bytesDone,omitempty"`
	BytesTotal int64          `json:"bytesTotal,omitempty"`
}
