package fields

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// validator checks a raw match and returns its canonical form. The
// normalized value is returned even when ok is false so invalid fields
// can still be surfaced.
type validator func(raw string, now time.Time) (normalized string, ok bool)

var (
	reDigits    = regexp.MustCompile(`^\d+$`)
	reAlnum     = regexp.MustCompile(`^[0-9A-Za-z]+$`)
	reTaxID     = regexp.MustCompile(`^[0-9A-Z]+$`)
	reAmount    = regexp.MustCompile(`^(\d+)(?:\.(\d{1,2}))?$`)
	reDateParts = regexp.MustCompile(`^(\d{4})\s*[年\-/.]\s*(\d{1,2})\s*[月\-/.]\s*(\d{1,2})\s*日?$`)
	reDateFlat  = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

// digitsOf accepts all-digit values whose length is one of lengths.
func digitsOf(lengths ...int) validator {
	return func(raw string, _ time.Time) (string, bool) {
		v := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
		if !reDigits.MatchString(v) {
			return v, false
		}
		for _, n := range lengths {
			if len(v) == n {
				return v, true
			}
		}
		return v, false
	}
}

func validateCheckCode(raw string, _ time.Time) (string, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	return v, reAlnum.MatchString(v) && len(v) >= 5 && len(v) <= 20
}

func validateTaxID(raw string, _ time.Time) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if !reTaxID.MatchString(v) {
		return v, false
	}
	switch len(v) {
	case 15, 18, 20:
		return v, true
	}
	return v, false
}

func validateName(raw string, _ time.Time) (string, bool) {
	v := strings.TrimSpace(raw)
	if utf8.RuneCountInString(v) < 2 {
		return v, false
	}
	for _, r := range v {
		if unicode.IsLetter(r) {
			return v, true
		}
	}
	return v, false
}

func validateAmount(raw string, _ time.Time) (string, bool) {
	cents, ok := ParseAmountCents(raw)
	if !ok {
		return cleanAmount(raw), false
	}
	return FormatCents(cents), true
}

func validateDate(raw string, now time.Time) (string, bool) {
	d, ok := ParseDate(raw)
	if !ok {
		return strings.TrimSpace(raw), false
	}
	out := d.Format("2006-01-02")
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return out, !d.After(today)
}

func cleanAmount(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.NewReplacer(",", "", " ", "", "¥", "", "￥", "", "$", "", "元", "").Replace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "RMB"), "CNY")
	return v
}

// maxAmountUnits keeps units*100 + cents within int64.
const maxAmountUnits = (math.MaxInt64 - 99) / 100

// ParseAmountCents parses a non-negative money amount with at most two
// fraction digits into cents. Amounts too large for int64 cents are rejected.
func ParseAmountCents(raw string) (int64, bool) {
	m := reAmount.FindStringSubmatch(cleanAmount(raw))
	if m == nil {
		return 0, false
	}
	units, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || units > maxAmountUnits {
		return 0, false
	}
	frac := m[2]
	for len(frac) < 2 {
		frac += "0"
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	return units*100 + cents, true
}

// FormatCents renders cents as a two-decimal string.
func FormatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

// ParseDate accepts 20250319, 2025-03-19, 2025/3/19, 2025.03.19 and
// 2025年3月19日, rejecting impossible calendar dates.
func ParseDate(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	m := reDateFlat.FindStringSubmatch(v)
	if m == nil {
		m = reDateParts.FindStringSubmatch(v)
	}
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
