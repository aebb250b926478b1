package anthropic

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/liuyipei/pdf-tokens/llm"
)

// Wire shapes for SSE events. One provider event may expand into one or
// more canonical chunks, and usage/stop reason arrive spread across
// message_start, message_delta and message_stop; the stream accumulates
// them so the terminal response is fully populated.

type wireStreamEvent struct {
	Type         string           `json:"type"`
	Index        int              `json:"index,omitempty"`
	Message      *wireResponse    `json:"message,omitempty"`
	ContentBlock *wireContent     `json:"content_block,omitempty"`
	Delta        *wireStreamDelta `json:"delta,omitempty"`
	Usage        *wireUsage       `json:"usage,omitempty"`
}

type wireStreamDelta struct {
	Type       string `json:"type"` // text_delta, input_json_delta
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type stream struct {
	body    io.ReadCloser
	scanner *llm.SSEScanner
	req     *llm.Request
	start   time.Time

	pending []llm.StreamChunk
	current *llm.StreamChunk
	resp    *llm.Response
	err     error
	done    bool
	closed  bool

	id         string
	model      string
	text       strings.Builder
	usage      llm.Usage
	stopReason llm.StopReason
}

func newStream(body io.ReadCloser, req *llm.Request, start time.Time, logger zerolog.Logger) *stream {
	return &stream{
		body:       body,
		scanner:    llm.NewSSEScanner(body, ProviderName, logger),
		req:        req,
		start:      start,
		model:      req.Model,
		stopReason: llm.StopReasonEndTurn,
	}
}

// Next implements llm.Stream.
func (s *stream) Next() bool {
	if len(s.pending) > 0 {
		return s.pop()
	}
	if s.done {
		return false
	}

	for {
		data, ok, err := s.scanner.Next()
		if err != nil {
			s.fail(llm.NewStreamError(ProviderName, "reading event stream", err))
			return s.pop()
		}
		if !ok {
			// Byte stream ended before a terminal event.
			s.fail(llm.NewStreamError(ProviderName, "stream ended without message_stop", nil))
			return s.pop()
		}

		var event wireStreamEvent
		if !s.scanner.Decode(data, &event) {
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				s.id = event.Message.ID
				if event.Message.Model != "" {
					s.model = event.Message.Model
				}
				if event.Message.Usage != nil {
					s.usage.InputTokens = event.Message.Usage.InputTokens
				}
			}
			s.push(llm.StreamChunk{Type: llm.ChunkMessageStart})
			return s.pop()

		case "content_block_start":
			s.push(llm.StreamChunk{Type: llm.ChunkContentBlockStart})
			return s.pop()

		case "content_block_delta":
			if event.Delta == nil || event.Delta.Type != "text_delta" {
				continue
			}
			s.text.WriteString(event.Delta.Text)
			s.push(llm.StreamChunk{Type: llm.ChunkTextDelta, Text: event.Delta.Text})
			return s.pop()

		case "content_block_stop":
			s.push(llm.StreamChunk{Type: llm.ChunkContentBlockStop})
			return s.pop()

		case "message_delta":
			// Carries the stop reason and output token count; no canonical
			// chunk of its own.
			if event.Delta != nil && event.Delta.StopReason != "" {
				s.stopReason = mapStopReason(event.Delta.StopReason)
			}
			if event.Usage != nil {
				s.usage.OutputTokens = event.Usage.OutputTokens
			}
			continue

		case "message_stop":
			s.finish()
			return s.pop()

		default:
			continue
		}
	}
}

func (s *stream) push(chunk llm.StreamChunk) {
	s.pending = append(s.pending, chunk)
}

func (s *stream) pop() bool {
	if len(s.pending) == 0 {
		return false
	}
	s.current = &s.pending[0]
	s.pending = s.pending[1:]
	return true
}

func (s *stream) fail(err error) {
	s.err = err
	s.done = true
	s.push(llm.StreamChunk{Type: llm.ChunkError, Err: err})
}

func (s *stream) finish() {
	usage := s.usage
	end := time.Now()
	s.resp = &llm.Response{
		ID:         s.id,
		Provider:   ProviderName,
		Model:      s.model,
		Content:    []llm.ContentPart{llm.NewTextPart(s.text.String())},
		StopReason: s.stopReason,
		Usage:      usage,
		Timing:     llm.Timing{StartTime: s.start, EndTime: end, Duration: end.Sub(s.start)},
	}
	s.done = true
	s.push(llm.StreamChunk{Type: llm.ChunkMessageStop, Usage: &usage})
}

// Chunk implements llm.Stream.
func (s *stream) Chunk() *llm.StreamChunk { return s.current }

// Response implements llm.Stream.
func (s *stream) Response() *llm.Response { return s.resp }

// Err implements llm.Stream.
func (s *stream) Err() error { return s.err }

// Close implements llm.Stream.
func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	return s.body.Close()
}
