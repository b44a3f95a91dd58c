package rows

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Table is a scraped registration grid: header texts plus row cell texts.
// Multi-valued cells (meeting patterns) hold one entry per line.
type Table struct {
	Headers []string   `json:"headers" yaml:"headers"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// Decode reads a table from JSON or YAML.
func Decode(body []byte) (Table, error) {
	var t Table
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return t, errors.New("rows: empty table payload")
	}

	var err error
	if trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &t)
	} else {
		err = yaml.Unmarshal(trimmed, &t)
	}
	if err != nil {
		return Table{}, fmt.Errorf("rows: decode table: %w", err)
	}
	if len(t.Headers) == 0 {
		return Table{}, errors.New("rows: table has no headers")
	}
	return t, nil
}

// Column keys resolved from header text.
const (
	ColInstructor          = "instructor"
	ColMeeting             = "meeting"
	ColDeliveryMode        = "deliveryMode"
	ColTitle               = "title"
	ColSection             = "section"
	ColInstructionalFormat = "instructionalFormat"
	ColStartDate           = "startDate"
)

// headerNeedles lists the accepted header texts per column, in lookup order.
var headerNeedles = []struct {
	key     string
	needles []string
}{
	{ColInstructor, []string{"instructor", "instructors"}},
	{ColMeeting, []string{"meeting patterns", "meeting pattern"}},
	{ColDeliveryMode, []string{"delivery mode"}},
	{ColTitle, []string{"title", "course listing"}},
	{ColSection, []string{"section"}},
	{ColInstructionalFormat, []string{"instructional format"}},
	{ColStartDate, []string{"start date", "start"}},
}

var spaceRunRe = regexp.MustCompile(`\s+`)

// NormalizeHeader maps NBSP to space, collapses whitespace, trims and
// lower-cases.
func NormalizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.ToLower(strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " ")))
}

// HeaderMap is column key -> header position. Unmapped keys are absent.
type HeaderMap map[string]int

// MapHeaders resolves every known column. An exact normalized match wins over
// a substring match; among equals the leftmost header wins.
func MapHeaders(headers []string) HeaderMap {
	type header struct {
		pos  int
		norm string
	}
	hs := make([]header, 0, len(headers))
	for i, h := range headers {
		if n := NormalizeHeader(h); n != "" {
			hs = append(hs, header{pos: i, norm: n})
		}
	}

	m := make(HeaderMap, len(headerNeedles))
	for _, col := range headerNeedles {
		ns := make([]string, len(col.needles))
		for i, n := range col.needles {
			ns[i] = NormalizeHeader(n)
		}

		found := -1
		for _, h := range hs {
			for _, n := range ns {
				if h.norm == n {
					found = h.pos
					break
				}
			}
			if found >= 0 {
				break
			}
		}
		if found < 0 {
			for _, h := range hs {
				for _, n := range ns {
					if strings.Contains(h.norm, n) {
						found = h.pos
						break
					}
				}
				if found >= 0 {
					break
				}
			}
		}
		if found >= 0 {
			m[col.key] = found
		}
	}
	return m
}

// Cell returns the trimmed text of column key in row, or "".
func (m HeaderMap) Cell(row []string, key string) (string, bool) {
	pos, ok := m[key]
	if !ok || pos >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[pos]), true
}
