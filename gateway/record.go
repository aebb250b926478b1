package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/liuyipei/pdf-tokens/calllog"
	"github.com/liuyipei/pdf-tokens/llm"
)

// Recorder persists per-call diagnostics. calllog.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, entry calllog.Entry) error
}

// record writes one call-log entry. Recording failures are logged and
// swallowed; diagnostics must never fail a call that succeeded.
func (g *Gateway) record(ctx context.Context, req *llm.Request, resp *llm.Response, callErr error, start time.Time, streamed bool) {
	if g.recorder == nil {
		return
	}

	entry := calllog.Entry{
		ID:        uuid.NewString(),
		Provider:  req.Provider,
		Model:     req.Model,
		Streamed:  streamed,
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}
	if resp != nil {
		entry.InputTokens = resp.Usage.InputTokens
		entry.OutputTokens = resp.Usage.OutputTokens
		entry.StopReason = string(resp.StopReason)
	}
	if callErr != nil {
		entry.ErrorCode = string(llm.Code(callErr))
		var gwErr *llm.Error
		if errors.As(callErr, &gwErr) {
			entry.StatusCode = gwErr.StatusCode
		}
	}

	if err := g.recorder.Record(ctx, entry); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to record call log entry")
	}
}

// recordedStream defers recording a streamed call until its terminal
// event, when the outcome and usage are known.
type recordedStream struct {
	llm.Stream
	g        *Gateway
	ctx      context.Context
	req      *llm.Request
	start    time.Time
	recorded bool
}

func (s *recordedStream) Next() bool {
	ok := s.Stream.Next()
	if !ok || s.recorded {
		return ok
	}
	switch s.Stream.Chunk().Type {
	case llm.ChunkMessageStop:
		s.recorded = true
		s.g.record(s.ctx, s.req, s.Stream.Response(), nil, s.start, true)
	case llm.ChunkError:
		s.recorded = true
		s.g.record(s.ctx, s.req, nil, s.Stream.Err(), s.start, true)
	}
	return ok
}
