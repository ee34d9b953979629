// Command llmclass classifies identity statements with a cloud chat model
// and images with a local Ollama vision model.
//
// The text pipeline reads a dataset CSV, classifies each sentence into the
// sense, reference and attribution dimensions, and writes a results CSV with
// periodic checkpoints. The image pipeline walks a directory (or a single
// path or URL), re-encodes each image as JPEG and writes a JSON array of
// classifications. Every batch is recorded in a SQLite history database that
// the history command reads back.
package main
