package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// SSEScanner reads a server-sent-event byte stream line by line. Partial
// lines at a read boundary are buffered until the next read completes
// them. Blank lines and "event:" lines are skipped; only the payload of
// "data:" lines is returned.
type SSEScanner struct {
	r        *bufio.Reader
	provider string
	logger   zerolog.Logger
}

// NewSSEScanner creates a scanner over the given response body.
func NewSSEScanner(r io.Reader, provider string, logger zerolog.Logger) *SSEScanner {
	return &SSEScanner{
		r:        bufio.NewReader(r),
		provider: provider,
		logger:   logger,
	}
}

// Next returns the payload of the next "data:" line. ok is false when the
// byte stream is exhausted (err is nil at a clean EOF).
func (s *SSEScanner) Next() (data string, ok bool, err error) {
	for {
		line, readErr := s.r.ReadString('\n')
		if readErr != nil {
			if readErr == io.EOF {
				// A trailing partial line without a newline can still be a
				// complete data line if the server closed right after it.
				line = strings.TrimSpace(line)
				if payload, isData := strings.CutPrefix(line, "data:"); isData {
					return strings.TrimSpace(payload), true, nil
				}
				return "", false, nil
			}
			return "", false, readErr
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "event:") {
			continue
		}
		payload, isData := strings.CutPrefix(line, "data:")
		if !isData {
			continue
		}
		return strings.TrimSpace(payload), true, nil
	}
}

// Decode unmarshals an event payload into v. Malformed JSON is skipped,
// not fatal: providers interleave keep-alive noise with real events, and
// a resilient reader must keep going. Each skip is logged at debug level
// so schema drift still leaves a trace.
func (s *SSEScanner) Decode(data string, v any) bool {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		s.logger.Debug().
			Str("provider", s.provider).
			Str("data", data).
			Err(err).
			Msg("Skipping malformed SSE event")
		return false
	}
	return true
}
