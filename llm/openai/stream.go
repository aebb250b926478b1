package openai

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/liuyipei/pdf-tokens/llm"
)

// doneSentinel terminates a Chat Completions event stream.
const doneSentinel = "[DONE]"

// stream adapts the flat delta events of the Chat Completions protocol to
// the canonical chunk sequence: the first delta synthesizes message_start
// and content_block_start, the [DONE] sentinel synthesizes
// content_block_stop and message_stop.
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
	opened  bool // message_start/content_block_start already emitted

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
			s.fail(llm.NewStreamError(ProviderName, "stream ended without terminal sentinel", nil))
			return s.pop()
		}

		if data == doneSentinel {
			s.finish()
			return s.pop()
		}

		var event wireResponse
		if !s.scanner.Decode(data, &event) {
			continue
		}

		if event.ID != "" {
			s.id = event.ID
		}
		if event.Model != "" {
			s.model = event.Model
		}
		if event.Usage != nil {
			s.usage = llm.Usage{
				InputTokens:  event.Usage.PromptTokens,
				OutputTokens: event.Usage.CompletionTokens,
			}
		}
		if len(event.Choices) == 0 {
			continue
		}
		choice := event.Choices[0]
		if choice.FinishReason != "" {
			s.stopReason = mapStopReason(choice.FinishReason)
		}

		if !s.opened {
			s.opened = true
			s.push(llm.StreamChunk{Type: llm.ChunkMessageStart})
			s.push(llm.StreamChunk{Type: llm.ChunkContentBlockStart})
		}
		if choice.Delta != nil && choice.Delta.Content != "" {
			s.text.WriteString(choice.Delta.Content)
			s.push(llm.StreamChunk{Type: llm.ChunkTextDelta, Text: choice.Delta.Content})
		}
		if len(s.pending) > 0 {
			return s.pop()
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
	if s.opened {
		s.push(llm.StreamChunk{Type: llm.ChunkContentBlockStop})
	}
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
