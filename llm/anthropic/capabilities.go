package anthropic

import (
	"strings"

	"github.com/liuyipei/pdf-tokens/llm"
)

// imageFormats lists the media types the Messages API accepts for image
// source blocks.
var imageFormats = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// baseline is the capability floor assumed for model ids that match no
// known family. Anthropic ships new ids faster than this table can track
// them, and every recent model handles vision and native PDF, so the
// registry degrades to that rather than failing closed.
var baseline = llm.ModelCapabilities{
	Vision:           true,
	PDF:              true,
	Tools:            true,
	Streaming:        true,
	MaxContextTokens: 200000,
	MaxOutputTokens:  4096,
	ContentOrdering:  &llm.ContentOrdering{ImagesFirst: true, SeparateSystem: true},
	Limits: &llm.ModelLimits{
		MaxImageSize:          5 * 1024 * 1024,
		MaxImagesPerMessage:   100,
		MaxPDFPages:           100,
		SupportedImageFormats: imageFormats,
	},
}

type modelEntry struct {
	id       string
	fragment string // family name fragment for fallback matching
	caps     llm.ModelCapabilities
}

// modelTable is built once at init and read-only afterwards. Order
// matters: routing picks the first entry whose capabilities satisfy a
// request, and fragment fallback scans top to bottom.
var modelTable = []modelEntry{
	{
		id:       "claude-sonnet-4-5",
		fragment: "sonnet",
		caps:     withLimits(true, true, 200000, 64000),
	},
	{
		id:       "claude-haiku-4-5",
		fragment: "haiku",
		caps:     withLimits(true, true, 200000, 64000),
	},
	{
		id:       "claude-opus-4-1",
		fragment: "opus",
		caps:     withLimits(true, true, 200000, 32000),
	},
	{
		id:       "claude-3-5-sonnet-20241022",
		fragment: "3-5-sonnet",
		caps:     withLimits(true, true, 200000, 8192),
	},
	{
		id:       "claude-3-5-haiku-20241022",
		fragment: "3-5-haiku",
		caps:     withLimits(true, false, 200000, 8192),
	},
}

func withLimits(vision, pdf bool, contextTokens, outputTokens int) llm.ModelCapabilities {
	caps := baseline
	caps.Vision = vision
	caps.PDF = pdf
	caps.MaxContextTokens = contextTokens
	caps.MaxOutputTokens = outputTokens
	return caps
}

// Capabilities implements llm.Adapter.
func (a *Adapter) Capabilities() llm.ModelCapabilities {
	return baseline
}

// Models implements llm.Adapter.
func (a *Adapter) Models() []string {
	ids := make([]string, len(modelTable))
	for i, entry := range modelTable {
		ids[i] = entry.id
	}
	return ids
}

// ModelCapabilities implements llm.Adapter. Exact id match wins, then the
// first family whose name fragment appears in the id, then the baseline.
func (a *Adapter) ModelCapabilities(modelID string) llm.ModelCapabilities {
	for _, entry := range modelTable {
		if entry.id == modelID {
			return entry.caps
		}
	}
	// More specific fragments ("3-5-sonnet") are checked before broad
	// family names ("sonnet") by scanning longest fragment first.
	best := -1
	for i, entry := range modelTable {
		if strings.Contains(modelID, entry.fragment) {
			if best == -1 || len(entry.fragment) > len(modelTable[best].fragment) {
				best = i
			}
		}
	}
	if best >= 0 {
		return modelTable[best].caps
	}
	return baseline
}
