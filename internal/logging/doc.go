// Package logging assembles structured slog loggers for the llmclass CLI.
//
// Console output goes to stderr, either as one readable line per record or as
// JSON. When a log directory is configured every record is also appended to
// llmclass.log as JSON. Context helpers tag lines with the run id, pipeline
// and current item.
package logging
