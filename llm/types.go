package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ContentPartType represents the type of a content part.
type ContentPartType string

const (
	ContentPartTypeText  ContentPartType = "text"
	ContentPartTypeImage ContentPartType = "image"
	ContentPartTypePDF   ContentPartType = "pdf"
	ContentPartTypeAudio ContentPartType = "audio"
	ContentPartTypeVideo ContentPartType = "video"
)

// ContentPart represents a single typed unit of message content.
// Exactly one of the payload fields is set, selected by Type.
type ContentPart struct {
	Type  ContentPartType `json:"type"`
	Text  string          `json:"text,omitempty"`
	Image *ImagePart      `json:"image,omitempty"`
	PDF   *PDFPart        `json:"pdf,omitempty"`
	Audio *MediaPart      `json:"audio,omitempty"`
	Video *MediaPart      `json:"video,omitempty"`
}

// ImagePart is an image payload. Data holds raw base64 bytes, never a
// data-URL prefix; adapters that need a data URL build it themselves.
type ImagePart struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"` // image/jpeg, image/png, image/gif, image/webp
	Source    string `json:"source,omitempty"`
}

// PDFPart is a PDF document payload. Data holds raw base64 bytes.
type PDFPart struct {
	Data      string     `json:"data"`
	PageRange *PageRange `json:"page_range,omitempty"`
	Filename  string     `json:"filename,omitempty"`
}

// PageRange selects an inclusive page span within a document.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MediaPart is an audio or video payload. Data holds raw base64 bytes.
type MediaPart struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content"`
}

type messageJSON struct {
	Role    MessageRole     `json:"role"`
	Content json.RawMessage `json:"content"`
}

// UnmarshalJSON accepts either a content array or a bare string, which is
// shorthand for a single text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	if len(raw.Content) == 0 {
		return nil
	}
	if raw.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentPart{{Type: ContentPartTypeText, Text: text}}
		return nil
	}
	return json.Unmarshal(raw.Content, &m.Content)
}

// Request represents a complete gateway request. It is immutable once
// passed to the gateway; adapters build provider wire requests from it
// without modifying it.
type Request struct {
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	System      string            `json:"system,omitempty"`
	MaxTokens   int64             `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// StopReason describes why generation ended, normalized across providers.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonError        StopReason = "error"
)

// Usage represents token usage as reported by the provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Timing records wall-clock bounds of a provider call.
type Timing struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Response represents a complete normalized provider response.
// Raw retains the unmodified provider payload for diagnostics; gateway
// logic never consumes it.
type Response struct {
	ID         string          `json:"id"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Content    []ContentPart   `json:"content"`
	StopReason StopReason      `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
	Timing     Timing          `json:"timing"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Text returns the concatenation of all text parts in the response.
func (r *Response) Text() string {
	var out string
	for _, part := range r.Content {
		if part.Type == ContentPartTypeText {
			out += part.Text
		}
	}
	return out
}

// StreamChunkType represents the type of a streaming chunk.
type StreamChunkType string

const (
	ChunkMessageStart      StreamChunkType = "message_start"
	ChunkContentBlockStart StreamChunkType = "content_block_start"
	ChunkTextDelta         StreamChunkType = "text_delta"
	ChunkContentBlockStop  StreamChunkType = "content_block_stop"
	ChunkMessageStop       StreamChunkType = "message_stop"
	ChunkError             StreamChunkType = "error"
)

// StreamChunk represents a single canonical streaming event. A stream is a
// lazy, finite, non-restartable sequence of chunks terminated by exactly
// one message_stop on success.
type StreamChunk struct {
	Type  StreamChunkType `json:"type"`
	Text  string          `json:"text,omitempty"`  // for text_delta
	Usage *Usage          `json:"usage,omitempty"` // for message_stop
	Err   error           `json:"-"`               // for error
}

// NewTextPart creates a text content part.
func NewTextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartTypeText, Text: text}
}

// NewImagePart creates an image content part from raw base64 data.
func NewImagePart(data, mediaType string) ContentPart {
	return ContentPart{
		Type:  ContentPartTypeImage,
		Image: &ImagePart{Data: data, MediaType: mediaType},
	}
}

// NewPDFPart creates a PDF content part from raw base64 data.
func NewPDFPart(data, filename string) ContentPart {
	return ContentPart{
		Type: ContentPartTypePDF,
		PDF:  &PDFPart{Data: data, Filename: filename},
	}
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: []ContentPart{NewTextPart(text)}}
}

// NewTextRequest creates a plain-text request for the given provider/model.
func NewTextRequest(provider, model, prompt string) *Request {
	return &Request{
		Provider: provider,
		Model:    model,
		Messages: []Message{NewTextMessage(RoleUser, prompt)},
	}
}

// NewVisionRequest creates a request pairing one or more images with a
// text prompt. Images precede the prompt so providers with images-first
// ordering constraints are satisfied without reshuffling.
func NewVisionRequest(provider, model, prompt string, images ...ContentPart) *Request {
	content := make([]ContentPart, 0, len(images)+1)
	content = append(content, images...)
	content = append(content, NewTextPart(prompt))
	return &Request{
		Provider: provider,
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: content}},
	}
}

// NewPDFRequest creates a document-analysis request from raw base64 PDF data.
func NewPDFRequest(provider, model, prompt, pdfData, filename string) *Request {
	return &Request{
		Provider: provider,
		Model:    model,
		Messages: []Message{{
			Role:    RoleUser,
			Content: []ContentPart{NewPDFPart(pdfData, filename), NewTextPart(prompt)},
		}},
	}
}

// PartTypes returns the distinct content part types used across all
// messages of the request, in first-seen order.
func (r *Request) PartTypes() []ContentPartType {
	seen := make(map[ContentPartType]bool)
	var types []ContentPartType
	for _, msg := range r.Messages {
		for _, part := range msg.Content {
			if !seen[part.Type] {
				seen[part.Type] = true
				types = append(types, part.Type)
			}
		}
	}
	return types
}

// CheckShape performs basic structural checks on a request before any
// capability resolution.
func (r *Request) CheckShape() error {
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	return nil
}
