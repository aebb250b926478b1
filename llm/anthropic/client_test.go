package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/liuyipei/pdf-tokens/llm"
)

func newServerAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{APIKey: "test-key", BaseURL: server.URL}, zerolog.Nop())
}

func TestSendHeadersAndBody(t *testing.T) {
	var gotHeaders http.Header
	var gotBody wireRequest
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_01","content":[{"type":"text","text":"hi"}],
			"model":"claude-sonnet-4-5","stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":1}}`))
	})

	resp, err := a.Send(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotHeaders.Get("x-api-key") != "test-key" {
		t.Error("Expected x-api-key header")
	}
	if gotHeaders.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("Unexpected anthropic-version: %s", gotHeaders.Get("anthropic-version"))
	}
	if gotBody.Model != "claude-sonnet-4-5" || gotBody.Stream {
		t.Errorf("Unexpected wire request: %+v", gotBody)
	}
	if resp.Text() != "hi" {
		t.Errorf("Unexpected response text: %q", resp.Text())
	}
}

func TestSendAPIError(t *testing.T) {
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Rate limited"}}`))
	})

	_, err := a.Send(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hello"))
	var gwErr *llm.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("Expected gateway error, got %v", err)
	}
	if gwErr.Code != llm.ErrAPI || gwErr.StatusCode != 429 {
		t.Errorf("Unexpected error: %+v", gwErr)
	}
	if len(gwErr.Raw) == 0 {
		t.Error("Expected raw error body retained")
	}
	if llm.IsRetryable(err) {
		t.Error("A 429 must not be retryable")
	}
}

func TestSendNotConfigured(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	a := New(Config{}, zerolog.Nop())
	_, err := a.Send(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hi"))
	if llm.Code(err) != llm.ErrNotConfigured {
		t.Errorf("Expected NOT_CONFIGURED, got %v", err)
	}
}

const streamBody = `event: message_start
data: {"type":"message_start","message":{"id":"msg_01","model":"claude-sonnet-4-5","usage":{"input_tokens":10,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":7}}

event: message_stop
data: {"type":"message_stop"}

`

func drain(t *testing.T, stream llm.Stream) []llm.StreamChunk {
	t.Helper()
	var chunks []llm.StreamChunk
	for stream.Next() {
		chunks = append(chunks, *stream.Chunk())
	}
	return chunks
}

func TestSendStream(t *testing.T) {
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var body wireRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			t.Error("Expected stream flag set in wire request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(streamBody))
	})

	stream, err := a.SendStream(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hi"))
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}
	defer stream.Close() //nolint:errcheck

	chunks := drain(t, stream)
	wantTypes := []llm.StreamChunkType{
		llm.ChunkMessageStart,
		llm.ChunkContentBlockStart,
		llm.ChunkTextDelta,
		llm.ChunkTextDelta,
		llm.ChunkContentBlockStop,
		llm.ChunkMessageStop,
	}
	if len(chunks) != len(wantTypes) {
		t.Fatalf("Expected %d chunks, got %d: %+v", len(wantTypes), len(chunks), chunks)
	}
	for i, want := range wantTypes {
		if chunks[i].Type != want {
			t.Errorf("Chunk %d: expected %s, got %s", i, want, chunks[i].Type)
		}
	}

	if err := stream.Err(); err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	resp := stream.Response()
	if resp == nil {
		t.Fatal("Expected terminal response")
	}
	if resp.Text() != "Hello world" {
		t.Errorf("Unexpected accumulated text: %q", resp.Text())
	}
	if resp.StopReason != llm.StopReasonMaxTokens {
		t.Errorf("Expected max_tokens stop reason, got %s", resp.StopReason)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
	if resp.ID != "msg_01" {
		t.Errorf("Unexpected id: %s", resp.ID)
	}
}

func TestSendStreamSkipsMalformedEvents(t *testing.T) {
	body := "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"ok\"}}\n\n" +
		"data: {garbage\n\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" still\"}}\n\n" +
		"data: {\"type\":\"message_stop\"}\n\n"
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	stream, err := a.SendStream(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hi"))
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}
	defer stream.Close() //nolint:errcheck

	chunks := drain(t, stream)
	if stream.Err() != nil {
		t.Fatalf("Malformed event must be skipped, got error: %v", stream.Err())
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected both deltas plus message_stop, got %d chunks", len(chunks))
	}
	if chunks[0].Text != "ok" || chunks[1].Text != " still" {
		t.Errorf("Unexpected delta chunks: %+v", chunks[:2])
	}
	if resp := stream.Response(); resp == nil || resp.Text() != "ok still" {
		t.Errorf("Expected terminal response surviving the malformed event, got %+v", resp)
	}
}

func TestSendStreamTruncated(t *testing.T) {
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n"))
	})

	stream, err := a.SendStream(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hi"))
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}
	defer stream.Close() //nolint:errcheck

	chunks := drain(t, stream)
	if len(chunks) != 2 {
		t.Fatalf("Expected delta then error chunk, got %d chunks", len(chunks))
	}
	if chunks[1].Type != llm.ChunkError {
		t.Errorf("Expected trailing error chunk, got %s", chunks[1].Type)
	}
	if llm.Code(stream.Err()) != llm.ErrStream {
		t.Errorf("Expected STREAM_ERROR, got %v", stream.Err())
	}
	if stream.Response() != nil {
		t.Error("Expected nil response after truncated stream")
	}
}

func TestSendStreamErrorStatus(t *testing.T) {
	a := newServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := a.SendStream(context.Background(), llm.NewTextRequest(ProviderName, "claude-sonnet-4-5", "hi"))
	var gwErr *llm.Error
	if !errors.As(err, &gwErr) || gwErr.StatusCode != 500 {
		t.Fatalf("Expected API error with status 500, got %v", err)
	}
}
