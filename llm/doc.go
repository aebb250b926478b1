// Package llm defines the canonical, provider-neutral shapes for
// multimodal model calls: messages built from typed content parts (text,
// image, pdf, audio, video), requests, normalized responses, streaming
// chunks, per-model capability ceilings, and the gateway error taxonomy.
//
// Every provider adapter implements the Adapter interface against these
// types, transforming a canonical Request into its own wire format and
// parsing the provider's response or SSE stream back into canonical form.
// The gateway package orchestrates adapters without ever inspecting their
// concrete types.
//
// # Core Concepts
//
//  1. Content parts: ContentPart is a tagged union. Data fields hold raw
//     base64 payload bytes, never a data-URL prefix; adapters that need a
//     data URL (e.g. OpenAI image_url) build it during transformation.
//
//  2. Capabilities: ModelCapabilities describes what a model accepts.
//     Resolution never fails; unknown model ids degrade to a known family
//     by name fragment, then to the provider baseline.
//
//  3. Streams: Stream is a lazy, finite, non-restartable chunk sequence
//     ending in exactly one message_stop on success. The terminal Response
//     carries usage and stop reason accumulated across wire events.
//
//  4. Errors: Error carries a machine-readable Code, the originating
//     provider, and where applicable the HTTP status and raw body.
//     CapabilityError and TransformError are pre-network rejections.
//     IsRetryable encodes the single retry classification used by the
//     gateway: 4xx API errors and client-side rejections are final,
//     everything else may be retried.
//
// To add a provider: implement Adapter, build wire structs for the
// provider's request/response/stream envelopes, map its stop-reason
// vocabulary onto StopReason (defaulting to end_turn for unknown values),
// and raise every failure as an *Error rather than recovering locally.
package llm
