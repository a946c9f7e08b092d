// Package fields holds the per-field recognition cues, validators and the
// cross-field amount rule used to turn recognized text into invoice fields.
package fields

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// Source is a region prepared for matching. Sources are passed in reading
// order; Index points back into the record's region list.
type Source struct {
	Index      int
	Text       string
	Confidence float64
}

// Candidate is one located value for a field.
type Candidate struct {
	Field         constants.FieldName
	Raw           string
	Normalized    string
	Valid         bool
	Confidence    float64
	SourceRegions []int

	rank   int // reading-order position of the first source
	offset int // byte offset inside that source
}

// Library matches and validates fields. It is safe for concurrent use.
type Library struct {
	now func() time.Time
}

type Option func(*Library)

// WithClock overrides the processing date used by the date validator.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLibrary(opts ...Option) *Library {
	l := &Library{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Validate runs the field's validator on a raw value.
func (l *Library) Validate(field constants.FieldName, raw string) (string, bool) {
	spec, ok := specs[field]
	if !ok {
		return raw, false
	}
	return spec.validate(raw, l.now())
}

// Find returns every candidate for field, best first.
func (l *Library) Find(field constants.FieldName, sources []Source) []Candidate {
	spec, ok := specs[field]
	if !ok {
		return nil
	}
	now := l.now()

	var out []Candidate
	add := func(raw string, rank, offset int, srcs ...Source) {
		norm, valid := spec.validate(raw, now)
		idx := make([]int, 0, len(srcs))
		var conf float64
		for _, s := range srcs {
			idx = append(idx, s.Index)
			conf += s.Confidence
		}
		out = append(out, Candidate{
			Field:         field,
			Raw:           raw,
			Normalized:    norm,
			Valid:         valid,
			Confidence:    conf / float64(len(srcs)),
			SourceRegions: idx,
			rank:          rank,
			offset:        offset,
		})
	}

	for rank, src := range sources {
		for _, c := range spec.cues {
			if c.label == nil {
				for _, m := range c.value.FindAllStringSubmatchIndex(src.Text, -1) {
					add(src.Text[m[2]:m[3]], rank, m[2], src)
				}
				continue
			}
			for _, lm := range c.label.FindAllStringIndex(src.Text, -1) {
				rest := src.Text[lm[1]:]
				if m := c.value.FindStringSubmatch(rest); m != nil {
					add(m[1], rank, lm[0], src)
					continue
				}
				if rank+1 < len(sources) && reLabelOnlyRest.MatchString(rest) {
					next := sources[rank+1]
					if m := c.value.FindStringSubmatch(next.Text); m != nil {
						add(m[1], rank, lm[0], src, next)
					}
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.offset < b.offset
	})
	return out
}

// Best returns the highest-confidence candidate, ties going to the earliest
// position in reading order.
func (l *Library) Best(field constants.FieldName, sources []Source) (Candidate, bool) {
	c := l.Find(field, sources)
	if len(c) == 0 {
		return Candidate{}, false
	}
	return c[0], true
}

// Violation is a failed cross-field check.
type Violation struct {
	Fields  []constants.FieldName
	Message string
}

// Reconcile checks total = tax + amount without tax within tolerance. The
// rule applies only when all three are present and valid.
func Reconcile(fields map[constants.FieldName]entity.ExtractedField, tolerance float64) []Violation {
	total, ok1 := validAmount(fields, constants.FieldTotalAmount)
	tax, ok2 := validAmount(fields, constants.FieldTaxAmount)
	net, ok3 := validAmount(fields, constants.FieldAmountWithoutTax)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	tol := int64(math.Round(tolerance * 100))
	diff := total - (tax + net)
	if diff < 0 {
		diff = -diff
	}
	if diff <= tol {
		return nil
	}
	return []Violation{{
		Fields:  []constants.FieldName{constants.FieldTotalAmount, constants.FieldTaxAmount, constants.FieldAmountWithoutTax},
		Message: fmt.Sprintf("total %s does not equal tax %s + amount without tax %s",
			FormatCents(total), FormatCents(tax), FormatCents(net)),
	}}
}

func validAmount(fields map[constants.FieldName]entity.ExtractedField, name constants.FieldName) (int64, bool) {
	f, ok := fields[name]
	if !ok || !f.Valid {
		return 0, false
	}
	return ParseAmountCents(f.NormalizedValue)
}
