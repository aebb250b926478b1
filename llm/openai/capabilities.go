package openai

import (
	"strings"

	"github.com/samber/lo"

	"github.com/liuyipei/pdf-tokens/llm"
)

// baseline is the capability floor for unrecognized model ids: chat and
// streaming only. Vision is family-specific and native PDF input does not
// exist on the Chat Completions API, so the fallback stays conservative.
var baseline = llm.ModelCapabilities{
	Tools:            true,
	Streaming:        true,
	MaxContextTokens: 128000,
	MaxOutputTokens:  4096,
	Limits: &llm.ModelLimits{
		MaxImageSize:          20 * 1024 * 1024,
		MaxImagesPerMessage:   10,
		SupportedImageFormats: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	},
}

type modelEntry struct {
	id       string
	fragment string
	caps     llm.ModelCapabilities
}

// Fallback takes the longest fragment contained in the id, so broad
// family names ("gpt-4") never shadow their more specific variants
// ("gpt-4o", "gpt-4o-mini") regardless of table order. Order does drive
// routing preference: the first capable entry wins.
var modelTable = []modelEntry{
	{id: "gpt-4o", fragment: "gpt-4o", caps: visionModel(128000, 16384)},
	{id: "gpt-4o-mini", fragment: "gpt-4o-mini", caps: visionModel(128000, 16384)},
	{id: "gpt-4-turbo", fragment: "gpt-4-turbo", caps: visionModel(128000, 4096)},
	{id: "o1", fragment: "o1", caps: visionModel(200000, 100000)},
	{id: "gpt-4", fragment: "gpt-4", caps: textModel(8192, 8192)},
	{id: "gpt-3.5-turbo", fragment: "gpt-3.5", caps: textModel(16385, 4096)},
}

func visionModel(contextTokens, outputTokens int) llm.ModelCapabilities {
	caps := baseline
	caps.Vision = true
	caps.MaxContextTokens = contextTokens
	caps.MaxOutputTokens = outputTokens
	return caps
}

func textModel(contextTokens, outputTokens int) llm.ModelCapabilities {
	caps := baseline
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
	return lo.Map(modelTable, func(entry modelEntry, _ int) string {
		return entry.id
	})
}

// ModelCapabilities implements llm.Adapter. Exact id match wins, then the
// longest fragment contained in the id, then the baseline.
func (a *Adapter) ModelCapabilities(modelID string) llm.ModelCapabilities {
	for _, entry := range modelTable {
		if entry.id == modelID {
			return entry.caps
		}
	}
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
