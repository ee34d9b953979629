// Package dataset reads the statement CSV consumed by the text pipeline and
// writes the results and checkpoint CSVs it produces.
package dataset
