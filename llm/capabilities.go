package llm

// ModelCapabilities describes the feature ceiling of a single model:
// which content part types it accepts and its context/output limits.
type ModelCapabilities struct {
	Vision    bool `json:"vision"`
	PDF       bool `json:"pdf"`
	Audio     bool `json:"audio"`
	Video     bool `json:"video"`
	Tools     bool `json:"tools"`
	Streaming bool `json:"streaming"`

	MaxContextTokens int `json:"max_context_tokens"`
	MaxOutputTokens  int `json:"max_output_tokens"`

	ContentOrdering *ContentOrdering `json:"content_ordering,omitempty"`
	Limits          *ModelLimits     `json:"limits,omitempty"`
}

// ContentOrdering captures provider-specific content arrangement rules.
type ContentOrdering struct {
	ImagesFirst    bool `json:"images_first,omitempty"`
	SeparateSystem bool `json:"separate_system,omitempty"`
}

// ModelLimits captures optional per-model payload limits.
type ModelLimits struct {
	MaxImageSize          int      `json:"max_image_size,omitempty"` // bytes
	MaxImagesPerMessage   int      `json:"max_images_per_message,omitempty"`
	MaxPDFPages           int      `json:"max_pdf_pages,omitempty"`
	SupportedImageFormats []string `json:"supported_image_formats,omitempty"`
}

// Supports reports whether the model accepts the given content part type.
// Text is always supported.
func (c ModelCapabilities) Supports(t ContentPartType) bool {
	switch t {
	case ContentPartTypeText:
		return true
	case ContentPartTypeImage:
		return c.Vision
	case ContentPartTypePDF:
		return c.PDF
	case ContentPartTypeAudio:
		return c.Audio
	case ContentPartTypeVideo:
		return c.Video
	default:
		return false
	}
}

// SupportsAll reports whether the model accepts every given part type.
func (c ModelCapabilities) SupportsAll(types []ContentPartType) bool {
	for _, t := range types {
		if !c.Supports(t) {
			return false
		}
	}
	return true
}
