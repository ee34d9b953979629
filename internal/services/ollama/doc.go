// Package ollama talks to a locally hosted Ollama server.
//
// Generate posts a prompt plus base64-encoded images to /api/generate with
// streaming disabled and returns the single "response" field. Transport
// failures and HTTP 500/502/503/504 are retried with exponential backoff; any
// other status is terminal. ListModels reads /api/tags and doubles as the
// liveness probe run before a batch starts.
package ollama
