package taxonomy

import "strings"

// Dimension names one axis of the identity statement taxonomy.
type Dimension string

const (
	Sense       Dimension = "sense"
	Reference   Dimension = "reference"
	Attribution Dimension = "attribution"
)

// NA marks a dimension that does not apply to a statement. It is a valid
// category, not an error.
const NA = "NA"

// ErrorLabel is the literal written to persisted outputs when a prediction
// could not be produced.
const ErrorLabel = "ERROR"

// Coarse categories.
const (
	Consensual    = "Consensual"
	Subconsensual = "Subconsensual"
	Anchored      = "Anclaje"
	Unanchored    = "Sin anclaje"
)

var groups = map[Dimension]map[string][]string{
	Sense: {
		Consensual: {
			"Physical", "Collective", "Activity", "Property", "Narrative", "Global",
		},
		Subconsensual: {
			"Attitudinal", "Self-esteem", "Preference", "Beliefs", "Aspirations",
			"Self-doubt", "Nihilistic", "About others", "Test evasion", "Metaphor",
		},
	},
	Reference: {
		Unanchored: {
			"Biosocial", "Generic", "Name", "Gender", "Age", "Physical Characteristics",
			"Health identity", "Universal definition", "Material partitive", "Social partitive",
		},
		Anchored: {
			"Familiar", "Groupal", "Active", "Social", "Matrimonial", "Partner",
			"Nuclear family", "Extended family", "Home", "Housing", "Primary group",
			"Secondary group", "Generalized other", "Job", "Work role", "Unemployment",
			"Educational role", "Complementary activity", "Social class", "Local",
			"Local identity", "Intermediate identity", "State identity",
			"Supranational identity", "Marginal identity", "Queer identity",
			"Political identity", "Sexual Orientation", "Ethnic identity",
			"Famous personalities", "Religious identity", "Linguistic reference",
		},
	},
}

var tables = buildTables()

func buildTables() map[Dimension]map[string]string {
	out := make(map[Dimension]map[string]string, len(groups))
	for dim, byCoarse := range groups {
		t := map[string]string{}
		for coarse, fine := range byCoarse {
			for _, label := range fine {
				t[label] = coarse
			}
		}
		out[dim] = t
	}
	return out
}

// Coarsen maps a fine-grained label onto its coarse category. Lookup is
// exact: labels outside the tables, and every label of dimensions without a
// table, are returned unchanged.
func Coarsen(dim Dimension, label string) string {
	if coarse, ok := tables[dim][label]; ok {
		return coarse
	}
	return label
}

// NormalizeTruth cleans a ground-truth cell from the dataset. Empty cells and
// the ERROR literal become NA; other values are trimmed and coarsened.
func NormalizeTruth(dim Dimension, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == ErrorLabel || strings.EqualFold(trimmed, "nan") {
		return NA
	}
	return Coarsen(dim, trimmed)
}
