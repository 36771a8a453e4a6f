package config

import "voice-scribe/internal/domain"

// DefaultSettings returns baseline configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		LogLevel:     "info",
		KeepHistory:  true,
		HistoryLimit: 200,
	}
}
