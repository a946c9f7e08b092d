package ocr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// tesseract TSV word rows have level 5.
const tsvWordLevel = 5

var tsvColumns = []string{"level", "page_num", "block_num", "par_num", "line_num", "left", "top", "width", "height", "conf", "text"}

type lineAcc struct {
	key                    [4]int
	text                   strings.Builder
	confSum                float64
	confN                  int
	minX, minY, maxX, maxY float64
}

func (l *lineAcc) add(word string, conf float64, left, top, w, h float64) {
	if l.text.Len() > 0 && needsSpace(l.text.String(), word) {
		l.text.WriteByte(' ')
	}
	l.text.WriteString(word)
	if conf >= 0 {
		l.confSum += conf
		l.confN++
	}
	l.minX = math.Min(l.minX, left)
	l.minY = math.Min(l.minY, top)
	l.maxX = math.Max(l.maxX, left+w)
	l.maxY = math.Max(l.maxY, top+h)
}

func (l *lineAcc) region() entity.TextRegion {
	var conf float64
	if l.confN > 0 {
		conf = l.confSum / float64(l.confN) / 100.0 // 0..100 -> 0..1
	}
	return entity.TextRegion{
		Text:        l.text.String(),
		BoundingBox: entity.BoxFromRect(l.minX, l.minY, l.maxX-l.minX, l.maxY-l.minY),
		Confidence:  conf,
	}
}

// needsSpace keeps Latin words apart while gluing CJK tokens, which
// tesseract emits one glyph group at a time.
func needsSpace(prev, next string) bool {
	a, _ := utf8.DecodeLastRuneInString(prev)
	b, _ := utf8.DecodeRuneInString(next)
	return a < utf8.RuneSelf && b < utf8.RuneSelf && !unicode.IsSpace(a) && !unicode.IsSpace(b)
}

// ParseTSV groups tesseract TSV word rows into one region per text line.
func ParseTSV(data []byte) ([]entity.TextRegion, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil
	}

	col := make(map[string]int)
	for i, h := range strings.Split(lines[0], "\t") {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range tsvColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("tsv: missing column %q", name)
		}
	}
	num := func(cols []string, name string) float64 {
		i := col[name]
		if i >= len(cols) {
			return 0
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(cols[i]), 64)
		return v
	}

	var out []entity.TextRegion
	var cur *lineAcc
	flush := func() {
		if cur != nil && cur.text.Len() > 0 {
			out = append(out, cur.region())
		}
		cur = nil
	}

	for _, ln := range lines[1:] {
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if int(num(cols, "level")) != tsvWordLevel {
			continue
		}
		ti := col["text"]
		if ti >= len(cols) {
			continue
		}
		word := strings.TrimSpace(cols[ti])
		if word == "" {
			continue
		}

		key := [4]int{int(num(cols, "page_num")), int(num(cols, "block_num")), int(num(cols, "par_num")), int(num(cols, "line_num"))}
		if cur == nil || cur.key != key {
			flush()
			cur = &lineAcc{
				key:  key,
				minX: math.Inf(1), minY: math.Inf(1),
				maxX: math.Inf(-1), maxY: math.Inf(-1),
			}
		}
		cur.add(word, num(cols, "conf"), num(cols, "left"), num(cols, "top"), num(cols, "width"), num(cols, "height"))
	}
	flush()
	return out, nil
}
