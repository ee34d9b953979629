// Package batch drives the text and image pipelines: it walks inputs
// sequentially, records exactly one result per input in input order, and
// hands periodic snapshots of text results to checkpoint sinks. Per-item
// failures become error records; only cancellation stops a run early.
package batch
