// Package textclass classifies identity statements with a chat-completion
// model and normalizes the replies into the fixed taxonomy.
//
// Normalize is total: any reply maps to either a Prediction with three
// non-empty labels or a Failure with a reason. The ERROR literal used by the
// persisted CSV format is produced only by Reply.Labels and
// Reply.ResponseJSON.
package textclass
