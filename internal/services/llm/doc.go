// Package llm provides the OpenAI-compatible chat client used by the text
// classification pipeline.
//
// # Request Shape
//
// Complete sends a system instruction and a user message with a low sampling
// temperature and a bounded output token count, and returns the single text
// completion. Replies are expected to carry a JSON payload; DecodeJSON and
// StripCodeFence tolerate markdown code fences and surrounding prose.
//
// # Configuration
//
// Requires api_key and model; base_url defaults to https://api.openai.com/v1.
// A missing key is reported as a configuration error before any request is
// sent.
//
// # Retry Behaviour
//
// Every attempt failure is retryable for this backend, including replies the
// caller's accept function rejects (malformed JSON). Waits follow the retry
// package's exponential backoff. Complete always returns a definite
// retry.Outcome.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: prompts in, reply text (or terminal failure) out.
// Client.ListModels: connectivity probe listing model identifiers.
package llm
