// Package preflight provides readiness checks for the classification
// backends and the files a run depends on.
//
// These checks run in two contexts:
//   - The CLI "check" command runs every check and renders a table.
//   - The text and images commands run the checks for their pipeline before
//     any batch work, so a missing credential or stopped Ollama server fails
//     fast instead of producing a file of error rows.
package preflight
