package sepa

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordLength is the width of every Cuaderno record.
const RecordLength = 600

const dateLayout = "20060102"

// Field is one positional column. Numeric fields are right aligned and zero
// filled, alphanumeric ones left aligned and space filled. A field with a
// Value always renders that constant.
type Field struct {
	Name    string
	Width   int
	Numeric bool
	Value   string
}

// Layout describes one record type. Every record starts with its two-digit
// Code and is padded with spaces to RecordLength.
type Layout struct {
	Code   string
	Fields []Field
}

// Render writes values into a fixed-width line. Alphanumeric values are
// cleaned and truncated; a numeric value that does not fit is an error.
func (l Layout) Render(values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(RecordLength)
	b.WriteString(l.Code)
	for _, f := range l.Fields {
		v := values[f.Name]
		if f.Value != "" {
			v = f.Value
		}
		if f.Numeric {
			if v == "" {
				v = "0"
			}
			if !isDigits(v) {
				return "", fmt.Errorf("%s %s: %w", l.Code, f.Name, ErrNotNumeric)
			}
			if len(v) > f.Width {
				return "", fmt.Errorf("%s %s: %w", l.Code, f.Name, ErrFieldOverflow)
			}
			b.WriteString(strings.Repeat("0", f.Width-len(v)))
			b.WriteString(v)
			continue
		}
		v = Truncate(Clean(v), f.Width)
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", f.Width-len(v)))
	}
	if b.Len() > RecordLength {
		return "", fmt.Errorf("%s: %w", l.Code, ErrFieldOverflow)
	}
	b.WriteString(strings.Repeat(" ", RecordLength-b.Len()))
	return b.String(), nil
}

// Parse splits a line back into trimmed field values.
func (l Layout) Parse(line string) (map[string]string, error) {
	if len(line) != RecordLength {
		return nil, fmt.Errorf("record %q has %d chars: %w", lineCode(line), len(line), ErrRecordLength)
	}
	if !strings.HasPrefix(line, l.Code) {
		return nil, fmt.Errorf("want %s got %s: %w", l.Code, lineCode(line), ErrRecordCode)
	}
	out := make(map[string]string, len(l.Fields))
	pos := len(l.Code)
	for _, f := range l.Fields {
		out[f.Name] = strings.TrimRight(line[pos:pos+f.Width], " ")
		pos += f.Width
	}
	return out, nil
}

func lineCode(line string) string {
	if len(line) < 2 {
		return line
	}
	return line[:2]
}

func cents(v int64) string { return strconv.FormatInt(v, 10) }

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// splitAddress spreads a single address line over the three address fields.
func splitAddress(address string, widths ...int) []string {
	rest := Clean(address)
	out := make([]string, len(widths))
	for i, w := range widths {
		if rest == "" {
			break
		}
		if len(rest) <= w {
			out[i] = rest
			rest = ""
			break
		}
		cut := strings.LastIndexByte(rest[:w+1], ' ')
		if cut <= 0 {
			cut = w
		}
		out[i] = strings.TrimSpace(rest[:cut])
		rest = strings.TrimSpace(rest[cut:])
	}
	return out
}

func splitLines(data []byte) []string {
	raw := strings.Split(string(data), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseCents(v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", v, ErrNotNumeric)
	}
	return n, nil
}
