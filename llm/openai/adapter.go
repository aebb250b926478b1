package openai

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/liuyipei/pdf-tokens/llm"
)

// Wire shapes for the Chat Completions API. Unlike the Anthropic-style
// protocol there is no separate system field: the system prompt is a
// message with role "system", and images travel as data-URL strings.

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// wireMessage carries either a plain string (system prompts, simple text)
// or an array of typed parts (multimodal content) in Content.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wirePart struct {
	Type     string        `json:"type"` // text, image_url
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type wireUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type wireChoice struct {
	Index        int              `json:"index"`
	Message      *wireChoiceBody  `json:"message,omitempty"`
	Delta        *wireChoiceDelta `json:"delta,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

type wireChoiceBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireChoiceDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

// transformRequest builds the provider wire request. The canonical system
// prompt and any system-role messages become leading role:"system"
// messages.
func (a *Adapter) transformRequest(req *llm.Request, stream bool) (*wireRequest, error) {
	caps := a.ModelCapabilities(req.Model)

	var messages []wireMessage
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			for _, part := range msg.Content {
				if part.Type != llm.ContentPartTypeText {
					// System messages are plain strings on this protocol;
					// anything else would have to be dropped, and dropping
					// content is never an option.
					return nil, &llm.TransformError{
						Provider: ProviderName,
						PartType: part.Type,
						Message:  "system messages accept text content only",
					}
				}
				messages = append(messages, wireMessage{Role: "system", Content: part.Text})
			}
			continue
		}

		parts := make([]wirePart, 0, len(msg.Content))
		for _, part := range msg.Content {
			wp, err := a.transformContentPart(part, caps)
			if err != nil {
				return nil, err
			}
			parts = append(parts, wp)
		}
		if len(parts) == 0 {
			continue
		}
		// A single text part collapses to the plain-string form the API
		// has always accepted.
		if len(parts) == 1 && parts[0].Type == "text" {
			messages = append(messages, wireMessage{Role: string(msg.Role), Content: parts[0].Text})
			continue
		}
		messages = append(messages, wireMessage{Role: string(msg.Role), Content: parts})
	}

	return &wireRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}, nil
}

// transformContentPart maps one canonical part to a provider part.
// Images become data-URL strings; the raw base64 payload never carries a
// prefix, so the prefix is added here and only here.
func (a *Adapter) transformContentPart(part llm.ContentPart, caps llm.ModelCapabilities) (wirePart, error) {
	switch part.Type {
	case llm.ContentPartTypeText:
		return wirePart{Type: "text", Text: part.Text}, nil

	case llm.ContentPartTypeImage:
		if !caps.Vision {
			return wirePart{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "model does not support vision input",
			}
		}
		if part.Image == nil {
			return wirePart{}, &llm.TransformError{
				Provider: ProviderName,
				PartType: part.Type,
				Message:  "image part has no payload",
			}
		}
		return wirePart{
			Type: "image_url",
			ImageURL: &wireImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", part.Image.MediaType, part.Image.Data),
				Detail: "auto",
			},
		}, nil

	case llm.ContentPartTypePDF:
		// No Chat Completions model takes native PDF input; the documented
		// escalation path is rasterizing pages to images upstream.
		return wirePart{}, &llm.TransformError{
			Provider: ProviderName,
			PartType: part.Type,
			Message:  "provider has no native PDF input; convert pages to images first",
		}

	default:
		return wirePart{}, &llm.TransformError{
			Provider: ProviderName,
			PartType: part.Type,
			Message:  "content type has no wire representation for this provider",
		}
	}
}

// stopReasons maps finish_reason values onto the canonical vocabulary.
// Unrecognized values fall through to end_turn.
var stopReasons = map[string]llm.StopReason{
	"stop":           llm.StopReasonEndTurn,
	"length":         llm.StopReasonMaxTokens,
	"content_filter": llm.StopReasonStopSequence,
	"tool_calls":     llm.StopReasonToolUse,
	"function_call":  llm.StopReasonToolUse,
}

func mapStopReason(raw string) llm.StopReason {
	if reason, ok := stopReasons[raw]; ok {
		return reason
	}
	return llm.StopReasonEndTurn
}

// transformResponse normalizes a buffered wire response.
func (a *Adapter) transformResponse(wr *wireResponse, raw []byte, req *llm.Request, timing llm.Timing) (*llm.Response, error) {
	if len(wr.Choices) == 0 {
		return nil, llm.NewAPIError(ProviderName, 0, "response has no choices", raw)
	}
	choice := wr.Choices[0]

	var content []llm.ContentPart
	if choice.Message != nil && choice.Message.Content != "" {
		content = append(content, llm.NewTextPart(choice.Message.Content))
	}

	resp := &llm.Response{
		ID:         wr.ID,
		Provider:   ProviderName,
		Model:      wr.Model,
		Content:    content,
		StopReason: mapStopReason(choice.FinishReason),
		Timing:     timing,
		Raw:        json.RawMessage(raw),
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if wr.Usage != nil {
		resp.Usage = llm.Usage{
			InputTokens:  wr.Usage.PromptTokens,
			OutputTokens: wr.Usage.CompletionTokens,
		}
	}
	return resp, nil
}

func newTiming(start time.Time) llm.Timing {
	end := time.Now()
	return llm.Timing{StartTime: start, EndTime: end, Duration: end.Sub(start)}
}
