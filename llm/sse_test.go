package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type chunkedReader struct {
	chunks []string
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collectSSE(t *testing.T, r io.Reader) []string {
	t.Helper()
	scanner := NewSSEScanner(r, "test", zerolog.Nop())
	var payloads []string
	for {
		data, ok, err := scanner.Next()
		if err != nil {
			t.Fatalf("scanner error: %v", err)
		}
		if !ok {
			return payloads
		}
		payloads = append(payloads, data)
	}
}

func TestSSEScannerSkipsEventAndBlankLines(t *testing.T) {
	body := "event: message_start\ndata: {\"a\":1}\n\nevent: ping\n\ndata: {\"b\":2}\n\n"
	payloads := collectSSE(t, strings.NewReader(body))
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 payloads, got %d: %v", len(payloads), payloads)
	}
	if payloads[0] != `{"a":1}` || payloads[1] != `{"b":2}` {
		t.Errorf("Unexpected payloads: %v", payloads)
	}
}

func TestSSEScannerBuffersPartialLines(t *testing.T) {
	// One data line split across three reads must come back whole.
	r := &chunkedReader{chunks: []string{"data: {\"te", "xt\":\"hel", "lo\"}\n\n"}}
	payloads := collectSSE(t, r)
	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	if payloads[0] != `{"text":"hello"}` {
		t.Errorf("Expected reassembled payload, got %q", payloads[0])
	}
}

func TestSSEScannerTrailingDataWithoutNewline(t *testing.T) {
	payloads := collectSSE(t, strings.NewReader("data: {\"a\":1}\n\ndata: [DONE]"))
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 payloads, got %d: %v", len(payloads), payloads)
	}
	if payloads[1] != "[DONE]" {
		t.Errorf("Expected trailing payload without newline, got %q", payloads[1])
	}
}

func TestSSEScannerDecodeSkipsMalformed(t *testing.T) {
	scanner := NewSSEScanner(strings.NewReader(""), "test", zerolog.Nop())
	var v map[string]any
	if scanner.Decode("{not json", &v) {
		t.Error("Expected malformed JSON to be skipped")
	}
	if !scanner.Decode(`{"ok":true}`, &v) {
		t.Error("Expected well-formed JSON to decode")
	}
}
