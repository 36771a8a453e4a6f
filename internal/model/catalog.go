package model

import (
	"fmt"
	"strings"

	"voice-scribe/internal/domain"
)

// Entry describes one downloadable recognition model tier.
type Entry struct {
	Tier        domain.ModelTier
	Name        string
	FileName    string
	URL         string
	NominalMB   float64
	SizeLabel   string
	Description string
}

// Catalog maps model tiers to their download sources and file names.
// Entries are ordered from most to least preferred, so the first entry
// whose file exists decides the active tier.
type Catalog struct {
	entries []Entry
}

// NewCatalog builds a catalog from explicit entries, preserving order.
func NewCatalog(entries ...Entry) Catalog {
	return Catalog{entries: entries}
}

// DefaultCatalog returns the built-in two-tier model catalog.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Entry{
			Tier:        domain.ModelTierStandard,
			Name:        "Standard (English)",
			FileName:    "ggml-base.en.bin",
			URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
			NominalMB:   142,
			SizeLabel:   "~142 MB",
			Description: "Balanced speed and quality, English-only.",
		},
		Entry{
			Tier:        domain.ModelTierCompact,
			Name:        "Compact (English)",
			FileName:    "ggml-tiny.en.bin",
			URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
			NominalMB:   75,
			SizeLabel:   "~75 MB",
			Description: "Fastest English-only model.",
		},
	)
}

// Entries returns catalog entries in preference order.
func (c Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// FileNames returns the model file names in preference order.
func (c Catalog) FileNames() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.FileName)
	}
	return names
}

// Entry returns the catalog entry for a tier.
func (c Catalog) Entry(tier domain.ModelTier) (Entry, bool) {
	for _, e := range c.entries {
		if e.Tier == tier {
			return e, true
		}
	}
	return Entry{}, false
}

// ParseTier maps an external tier id onto a catalog tier.
func (c Catalog) ParseTier(id string) (domain.ModelTier, error) {
	tier := domain.ModelTier(strings.TrimSpace(id))
	if _, ok := c.Entry(tier); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, id)
	}
	return tier, nil
}
