package entity

import (
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// InvoiceTypeCandidate is one scored classification hypothesis.
type InvoiceTypeCandidate struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Confidence      float64  `json:"confidence"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// ExtractedField is a located, validated field value.
type ExtractedField struct {
	Name            constants.FieldName `json:"name"`
	RawValue        string              `json:"raw_value"`
	NormalizedValue string              `json:"normalized_value"`
	Confidence      float64             `json:"confidence"`
	SourceRegions   []int               `json:"source_regions"`
	Valid           bool                `json:"valid"`
}

// Warning codes attached to assembled records.
const (
	WarningMissingField   = "missing_field"
	WarningAmountMismatch = "amount_mismatch"
)

// Warning is a non-fatal finding on an assembled record.
type Warning struct {
	Code    string                `json:"code"`
	Fields  []constants.FieldName `json:"fields,omitempty"`
	Message string                `json:"message"`
}

// InvoiceRecord is the assembled result for one image. It is never mutated
// after assembly; use Clone before handing a shared record to a caller.
type InvoiceRecord struct {
	Type              InvoiceTypeCandidate                   `json:"type"`
	Candidates        []InvoiceTypeCandidate                 `json:"candidates"`
	Fields            map[constants.FieldName]ExtractedField `json:"fields"`
	OverallConfidence float64                                `json:"overall_confidence"`
	Warnings          []Warning                              `json:"warnings,omitempty"`
	Regions           []TextRegion                           `json:"regions,omitempty"`
	Fingerprint       string                                 `json:"fingerprint,omitempty"`
	ProcessedAt       time.Time                              `json:"processed_at"`
}

// Field looks up a located field.
func (r *InvoiceRecord) Field(name constants.FieldName) (ExtractedField, bool) {
	if r == nil {
		return ExtractedField{}, false
	}
	f, ok := r.Fields[name]
	return f, ok
}

// Clone returns a deep copy.
func (r *InvoiceRecord) Clone() *InvoiceRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Type.MatchedKeywords = append([]string(nil), r.Type.MatchedKeywords...)
	if r.Candidates != nil {
		out.Candidates = make([]InvoiceTypeCandidate, len(r.Candidates))
		for i, c := range r.Candidates {
			c.MatchedKeywords = append([]string(nil), c.MatchedKeywords...)
			out.Candidates[i] = c
		}
	}
	if r.Fields != nil {
		out.Fields = make(map[constants.FieldName]ExtractedField, len(r.Fields))
		for k, f := range r.Fields {
			f.SourceRegions = append([]int(nil), f.SourceRegions...)
			out.Fields[k] = f
		}
	}
	if r.Warnings != nil {
		out.Warnings = make([]Warning, len(r.Warnings))
		for i, w := range r.Warnings {
			w.Fields = append([]constants.FieldName(nil), w.Fields...)
			out.Warnings[i] = w
		}
	}
	out.Regions = append([]TextRegion(nil), r.Regions...)
	return &out
}
