// Package classify scores recognized text against weighted keyword tables
// to decide which invoice type an image shows.
package classify

import (
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/fields"
)

type table struct {
	code     string
	keywords []Keyword
	max      float64
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	tables []table
}

type Option func(*Classifier)

// WithTables replaces the built-in keyword tables.
func WithTables(tables []TypeKeywords) Option {
	return func(c *Classifier) {
		c.tables = buildTables(tables)
	}
}

func New(opts ...Option) *Classifier {
	c := &Classifier{tables: buildTables(defaultTables)}
	for _, o := range opts {
		o(c)
	}
	return c
}

func buildTables(in []TypeKeywords) []table {
	out := make([]table, 0, len(in))
	for _, t := range in {
		tb := table{code: t.Code}
		for _, k := range t.Keywords {
			if k.Weight <= 0 || k.Text == "" {
				continue
			}
			tb.keywords = append(tb.keywords, Keyword{Text: strings.ToLower(fields.NormalizeText(k.Text)), Weight: k.Weight})
			tb.max += k.Weight
		}
		if tb.max > 0 {
			out = append(out, tb)
		}
	}
	return out
}

// Unknown is the single candidate returned when nothing matched.
func Unknown() entity.InvoiceTypeCandidate {
	return entity.InvoiceTypeCandidate{
		Code: constants.UnknownInvoiceType.Code,
		Name: constants.UnknownInvoiceType.Name,
	}
}

// Classify ranks invoice types for text. A type's score is the weight of
// its keywords found in text over the weight of all its keywords; its
// confidence is its share of the summed nonzero scores. Candidates are
// ordered by score, then matched keyword count, then code.
func (c *Classifier) Classify(text string) []entity.InvoiceTypeCandidate {
	haystack := strings.ToLower(fields.NormalizeText(text))

	var out []entity.InvoiceTypeCandidate
	var total float64
	for _, t := range c.tables {
		var hit float64
		var matched []string
		for _, k := range t.keywords {
			if strings.Contains(haystack, k.Text) {
				hit += k.Weight
				matched = append(matched, k.Text)
			}
		}
		if hit == 0 {
			continue
		}
		score := hit / t.max
		total += score
		out = append(out, entity.InvoiceTypeCandidate{
			Code:            t.code,
			Name:            constants.InvoiceTypeName(t.code),
			Score:           score,
			MatchedKeywords: matched,
		})
	}
	if len(out) == 0 {
		return []entity.InvoiceTypeCandidate{Unknown()}
	}

	for i := range out {
		out[i].Confidence = out[i].Score / total
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.MatchedKeywords) != len(b.MatchedKeywords) {
			return len(a.MatchedKeywords) > len(b.MatchedKeywords)
		}
		return a.Code < b.Code
	})
	return out
}

// ClassifyRegions joins region texts in reading order and classifies them.
func (c *Classifier) ClassifyRegions(regions []entity.TextRegion) []entity.InvoiceTypeCandidate {
	return c.Classify(JoinText(regions))
}

// JoinText concatenates region texts in reading order, one per line.
func JoinText(regions []entity.TextRegion) string {
	var b strings.Builder
	for i, idx := range entity.ReadingOrder(regions) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(regions[idx].Text)
	}
	return b.String()
}
