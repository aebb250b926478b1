package anthropic

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/liuyipei/pdf-tokens/llm"
)

// Wire shapes for the Messages API. The JSON layout must match the
// protocol exactly; canonical types never cross the wire directly.

type wireRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int64         `json:"max_tokens"`
	Messages    []wireMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"` // user or assistant
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type   string      `json:"type"` // text, image, document
	Text   string      `json:"text,omitempty"`
	Source *wireSource `json:"source,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"` // always base64
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Role       string        `json:"role"`
	Content    []wireContent `json:"content"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Usage      *wireUsage    `json:"usage,omitempty"`
}

type wireError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// transformRequest builds the provider wire request from a canonical one.
// System-role messages are lifted into the separate system field; every
// content part is mapped through transformContentPart, which rejects
// anything the resolved model cannot accept.
func (a *Adapter) transformRequest(req *llm.Request, stream bool) (*wireRequest, error) {
	caps := a.ModelCapabilities(req.Model)

	var system []string
	if req.System != "" {
		system = append(system, req.System)
	}

	messages := make([]wireMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			for _, part := range msg.Content {
				if part.Type != llm.ContentPartTypeText {
					// The system field is a string; anything else here would
					// have to be dropped, and dropping content is never an
					// option.
					return nil, &llm.TransformError{
						Provider: ProviderName,
						PartType: part.Type,
						Message:  "system messages accept text content only",
					}
				}
				system = append(system, part.Text)
			}
			continue
		}

		wm := wireMessage{Role: string(msg.Role)}
		for _, part := range msg.Content {
			block, err := a.transformContentPart(part, caps)
			if err != nil {
				return nil, err
			}
			wm.Content = append(wm.Content, block)
		}
		if len(wm.Content) > 0 {
			messages = append(messages, wm)
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		// The Messages API requires max_tokens on every request.
		maxTokens = int64(caps.MaxOutputTokens)
	}

	return &wireRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Messages:    messages,
		System:      strings.Join(system, "\n\n"),
		Temperature: req.Temperature,
		Stream:      stream,
	}, nil
}

// transformContentPart maps one canonical part to a provider content
// block, failing rather than silently dropping unsupported content.
func (a *Adapter) transformContentPart(part llm.ContentPart, caps llm.ModelCapabilities) (wireContent, error) {
	switch part.Type {
	case llm.ContentPartTypeText:
		return wireContent{Type: "text", Text: part.Text}, nil

	case llm.ContentPartTypeImage:
		if !caps.Vision {
			return wireContent{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "model does not support vision input",
			}
		}
		if part.Image == nil {
			return wireContent{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "image part has no payload",
			}
		}
		return wireContent{
			Type: "image",
			Source: &wireSource{
				Type:      "base64",
				MediaType: part.Image.MediaType,
				Data:      part.Image.Data,
			},
		}, nil

	case llm.ContentPartTypePDF:
		if !caps.PDF {
			// Callers must pre-convert pages to images; this is a manual
			// escalation path, never an automatic one.
			return wireContent{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "model does not support native PDF input; convert pages to images first",
			}
		}
		if part.PDF == nil {
			return wireContent{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "pdf part has no payload",
			}
		}
		return wireContent{
			Type: "document",
			Source: &wireSource{
				Type:      "base64",
				MediaType: "application/pdf",
				Data:      part.PDF.Data,
			},
		}, nil

	default:
		return wireContent{}, &llm.TransformError{
			Provider: ProviderName,
			PartType: part.Type,
			Message:  "content type has no wire representation for this provider",
		}
	}
}

// stopReasons maps the provider's stop-reason vocabulary onto the
// canonical one. Unrecognized values fall through to end_turn.
var stopReasons = map[string]llm.StopReason{
	"end_turn":      llm.StopReasonEndTurn,
	"max_tokens":    llm.StopReasonMaxTokens,
	"stop_sequence": llm.StopReasonStopSequence,
	"tool_use":      llm.StopReasonToolUse,
}

func mapStopReason(raw string) llm.StopReason {
	if reason, ok := stopReasons[raw]; ok {
		return reason
	}
	return llm.StopReasonEndTurn
}

// transformResponse normalizes a buffered wire response.
func (a *Adapter) transformResponse(wr *wireResponse, raw []byte, req *llm.Request, timing llm.Timing) *llm.Response {
	var content []llm.ContentPart
	for _, block := range wr.Content {
		if block.Type == "text" {
			content = append(content, llm.NewTextPart(block.Text))
		}
	}

	resp := &llm.Response{
		ID:         wr.ID,
		Provider:   ProviderName,
		Model:      wr.Model,
		Content:    content,
		StopReason: mapStopReason(wr.StopReason),
		Timing:     timing,
		Raw:        json.RawMessage(raw),
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if wr.Usage != nil {
		resp.Usage = llm.Usage{
			InputTokens:  wr.Usage.InputTokens,
			OutputTokens: wr.Usage.OutputTokens,
		}
	}
	return resp
}

func newTiming(start time.Time) llm.Timing {
	end := time.Now()
	return llm.Timing{StartTime: start, EndTime: end, Duration: end.Sub(start)}
}
