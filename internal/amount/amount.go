// Package amount canonicalizes concept/amount line items.
package amount

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is one itemized charge on an invoice.
type Line struct {
	Concept     string  `json:"concept"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Normalize accepts a line list, a concept->amount map, their decoded JSON
// forms, or nil. It returns nil when no valid entry remains. Invalid
// entries are dropped, never reported.
func Normalize(v any) []Line {
	switch in := v.(type) {
	case nil:
		return nil
	case []Line:
		return NormalizeLines(in)
	case map[string]float64:
		return NormalizeMap(in)
	case map[string]any:
		m := make(map[string]float64, len(in))
		for k, raw := range in {
			if f, ok := toFloat(raw); ok {
				m[k] = f
			}
		}
		return NormalizeMap(m)
	case []any:
		lines := make([]Line, 0, len(in))
		for _, item := range in {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			concept, _ := obj["concept"].(string)
			amt, ok := toFloat(obj["amount"])
			if !ok {
				continue
			}
			desc, _ := obj["description"].(string)
			lines = append(lines, Line{Concept: concept, Amount: amt, Description: desc})
		}
		return NormalizeLines(lines)
	case json.RawMessage:
		return normalizeJSON(in)
	case []byte:
		return normalizeJSON(in)
	default:
		return nil
	}
}

func normalizeJSON(data []byte) []Line {
	if len(data) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	return Normalize(decoded)
}

// NormalizeMap visits keys in sorted order so the output is deterministic.
func NormalizeMap(m map[string]float64) []Line {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]Line, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, Line{Concept: k, Amount: m[k]})
	}
	return NormalizeLines(lines)
}

// NormalizeLines trims concepts, drops invalid entries and merges
// case-insensitive duplicates into the first occurrence. An addend that
// would push a merged line past the float64 range is dropped so the line
// keeps its last finite sum.
func NormalizeLines(in []Line) []Line {
	if len(in) == 0 {
		return nil
	}

	type acc struct {
		line Line
		sum  decimal.Decimal
	}
	index := make(map[string]int, len(in))
	merged := make([]acc, 0, len(in))

	for _, item := range in {
		concept := strings.TrimSpace(item.Concept)
		if concept == "" || !Valid(item.Amount) {
			continue
		}
		key := strings.ToLower(concept)
		desc := strings.TrimSpace(item.Description)

		if i, ok := index[key]; ok {
			next := merged[i].sum.Add(decimal.NewFromFloat(item.Amount))
			if !Finite(next) {
				continue
			}
			merged[i].sum = next
			if merged[i].line.Description == "" && desc != "" {
				merged[i].line.Description = desc
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, acc{
			line: Line{Concept: concept, Description: desc},
			sum:  decimal.NewFromFloat(item.Amount),
		})
	}

	if len(merged) == 0 {
		return nil
	}
	out := make([]Line, len(merged))
	for i, m := range merged {
		m.line.Amount = m.sum.InexactFloat64()
		out[i] = m.line
	}
	return out
}

// Valid reports whether v is a finite, non-negative amount.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Finite reports whether d converts to a finite, non-negative float64.
func Finite(d decimal.Decimal) bool {
	return Valid(d.InexactFloat64())
}

// Sum adds line amounts in decimal arithmetic. Invalid amounts are skipped.
// The result may exceed the float64 range; check it with Finite.
func Sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if !Valid(l.Amount) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(l.Amount))
	}
	return total
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}
