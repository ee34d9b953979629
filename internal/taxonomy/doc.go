// Package taxonomy holds the fixed coarsening tables of the identity
// statement taxonomy: fine sense labels collapse to Consensual or
// Subconsensual, fine reference labels to Anclaje or Sin anclaje. Attribution
// has no table and passes through.
package taxonomy
