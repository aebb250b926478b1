package llm

import (
	"context"
)

// Adapter translates between the canonical request/response shape and one
// provider's wire protocol. Implementations are stateless per call;
// concurrent use is safe.
type Adapter interface {
	// Name returns the provider id used for routing (e.g. "anthropic").
	Name() string

	// IsConfigured reports whether a credential is present, from explicit
	// config or environment. Purely local, no network.
	IsConfigured() bool

	// Capabilities returns the provider's baseline capability set, used
	// when a model id matches no known family.
	Capabilities() ModelCapabilities

	// ModelCapabilities resolves the feature ceiling for a model id. It
	// never fails: unknown ids fall back to the nearest known family by
	// name fragment, then to the provider baseline.
	ModelCapabilities(modelID string) ModelCapabilities

	// Models returns the model ids the adapter knows natively, in registry
	// order. Routing picks the first capable entry.
	Models() []string

	// Send issues one buffered call and normalizes the result.
	Send(ctx context.Context, req *Request) (*Response, error)

	// SendStream issues one streaming call. The returned Stream must be
	// drained or closed by the caller.
	SendStream(ctx context.Context, req *Request) (Stream, error)
}

// Stream is a lazy, finite, non-restartable sequence of StreamChunks.
// The caller reads with Next/Chunk until Next returns false, then checks
// Err; on success Response returns the synthesized terminal response with
// usage and stop reason accumulated across the wire events.
type Stream interface {
	// Next advances to the next chunk, blocking on the underlying network
	// read. It returns false when the stream is complete or failed.
	Next() bool

	// Chunk returns the current chunk. Only valid after Next returns true.
	Chunk() *StreamChunk

	// Response returns the terminal response once the stream has ended
	// normally, nil before that or after a failure.
	Response() *Response

	// Err returns the error that ended the stream, if any.
	Err() error

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
