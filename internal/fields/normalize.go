package fields

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	reSpaces       = regexp.MustCompile(`\s+`)
	reDigitSpacing = regexp.MustCompile(`(\d) (\d)`)
)

// NormalizeText folds full-width forms to their narrow equivalents
// (`：`→`:`, `１`→`1`, `￥`→`¥`), collapses whitespace and joins digit
// groups that OCR split with single spaces.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = width.Fold.String(s)
	s = reSpaces.ReplaceAllString(s, " ")
	// applied twice: matches overlap on alternating digits ("1 2 3")
	s = reDigitSpacing.ReplaceAllString(s, "$1$2")
	s = reDigitSpacing.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(s)
}
