// Package llm provides a chat-completions client for OpenAI-compatible APIs.
//
// The client makes exactly one request per call. It does not retry: callers
// decide whether a failure is worth repeating.
//
// # Configuration
//
// Requires api_key and model; base_url defaults to the OpenAI endpoint and
// timeout_seconds to 60.
//
// # Entry Points
//
// NewClient: construct a client from Config.
// Client.Complete: send system/user prompts, receive the completion text.
// DecodeJSON: parse a model reply that may be wrapped in code fences or prose.
package llm
