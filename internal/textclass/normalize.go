package textclass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"llmclass/internal/services/llm"
	"llmclass/internal/taxonomy"
)

// Failure reasons produced by Normalize and Classifier.
const (
	ReasonJSONParse   = "JSON parsing error"
	ReasonNoSentences = "no sentences in response"
)

// Prediction holds the three categorical labels for one statement. Sense and
// Reference are already coarsened; every field is non-empty.
type Prediction struct {
	Sense       string
	Reference   string
	Attribution string

	SenseJustification       string
	ReferenceJustification   string
	AttributionJustification string
}

// Failure explains why no prediction could be produced.
type Failure struct {
	Reason string
	Err    error
}

// Justification renders the reason the way it is persisted next to ERROR
// labels.
func (f Failure) Justification() string {
	return "Error: " + f.Reason
}

// Reply is the tagged result of normalizing one model response: exactly one
// of Prediction or Failure is set.
type Reply struct {
	Prediction *Prediction
	Failure    *Failure
	// Raw is the model text after fence stripping; empty when no response
	// arrived.
	Raw string
}

// OK reports whether the reply carries a prediction.
func (r Reply) OK() bool { return r.Prediction != nil }

// Labels returns sense, reference and attribution for output rows. Failed
// replies yield the ERROR literal for all three.
func (r Reply) Labels() (string, string, string) {
	if r.Prediction == nil {
		return taxonomy.ErrorLabel, taxonomy.ErrorLabel, taxonomy.ErrorLabel
	}
	return r.Prediction.Sense, r.Prediction.Reference, r.Prediction.Attribution
}

// ErrorMessage returns the failure justification, or "" for predictions.
func (r Reply) ErrorMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Justification()
}

// ResponseJSON serializes the reply for the gpt_response column: the model's
// JSON compacted, or an error document with ERROR labels for failures.
func (r Reply) ResponseJSON(sentence string) string {
	if r.Failure == nil {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(sanitize(r.Raw))); err == nil {
			return buf.String()
		}
		encoded, _ := json.Marshal(r.Raw)
		return string(encoded)
	}
	justification := r.Failure.Justification()
	entry := map[string]string{
		"text":                      sentence,
		"sense":                     taxonomy.ErrorLabel,
		"reference":                 taxonomy.ErrorLabel,
		"attribution":               taxonomy.ErrorLabel,
		"sense_justification":       justification,
		"reference_justification":   justification,
		"attribution_justification": justification,
	}
	summary := make(map[string]string, len(entry)-1)
	for k, v := range entry {
		if k != "text" {
			summary[k] = v
		}
	}
	encoded, _ := json.Marshal(map[string]any{
		"sentences": []map[string]string{entry},
		"summary":   summary,
	})
	return string(encoded)
}

// label accepts strings, numbers, booleans and null so a sloppy reply still
// yields text.
type label string

func (l *label) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = label(s)
		return nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return fmt.Errorf("label: unexpected %s", trimmed[:1])
	}
	*l = label(trimmed)
	return nil
}

type sentenceReply struct {
	Text                     string `json:"text"`
	Sense                    label  `json:"sense"`
	Reference                label  `json:"reference"`
	Attribution              label  `json:"attribution"`
	SenseJustification       label  `json:"sense_justification"`
	ReferenceJustification   label  `json:"reference_justification"`
	AttributionJustification label  `json:"attribution_justification"`
}

type classificationReply struct {
	Sentences []sentenceReply `json:"sentences"`
}

func sanitize(raw string) string {
	return llm.StripCodeFence(raw)
}

func decode(raw string) (classificationReply, error) {
	var payload classificationReply
	err := llm.DecodeJSON(sanitize(raw), &payload)
	return payload, err
}

// orError keeps an omitted label distinguishable from an explicit NA.
func orError(value label) string {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return taxonomy.ErrorLabel
	}
	return trimmed
}

// Normalize maps a raw model response onto the taxonomy. It never fails:
// unparseable text and replies without sentences become a Failure. Only the
// first sentence is read; missing, null or empty labels become ERROR.
func Normalize(raw string) Reply {
	cleaned := sanitize(raw)
	payload, err := decode(raw)
	if err != nil {
		return Reply{Failure: &Failure{Reason: ReasonJSONParse, Err: err}, Raw: cleaned}
	}
	if len(payload.Sentences) == 0 {
		return Reply{Failure: &Failure{Reason: ReasonNoSentences}, Raw: cleaned}
	}
	first := payload.Sentences[0]
	return Reply{
		Prediction: &Prediction{
			Sense:                    taxonomy.Coarsen(taxonomy.Sense, orError(first.Sense)),
			Reference:                taxonomy.Coarsen(taxonomy.Reference, orError(first.Reference)),
			Attribution:              orError(first.Attribution),
			SenseJustification:       strings.TrimSpace(string(first.SenseJustification)),
			ReferenceJustification:   strings.TrimSpace(string(first.ReferenceJustification)),
			AttributionJustification: strings.TrimSpace(string(first.AttributionJustification)),
		},
		Raw: cleaned,
	}
}
