// Package llm provides an OpenAI-compatible chat client.
//
// The caption renderer uses Complete to translate narration text into the
// caption language, and preflight uses HealthCheck to verify credentials
// before a run starts.
//
// # Retry Behaviour
//
// RetryPolicy retries HTTP 408/429/5xx errors, empty completions and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default), honouring Retry-After. Context cancellation aborts retries
// immediately. The speech client shares the same policy.
package llm
