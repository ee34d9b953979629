// Package config loads, normalizes, and validates llmclass configuration.
//
// It supplies defaults matching the reference classification scripts, expands
// user paths (including tilde shortcuts), reads TOML files, and honours
// environment fallbacks such as OPENAI_API_KEY, API_KEY_OPENAI and
// OLLAMA_HOST, with an optional .env file loaded first.
//
// Always obtain settings through this package so commands receive sanitized
// paths, canonical log formats, and clear validation errors.
package config
