package sepa

import (
	"fmt"
	"strconv"
)

const codeFileTotal = "99"

var fileTotal = Layout{Code: codeFileTotal, Fields: []Field{
	{Name: "total", Width: 17, Numeric: true},
	{Name: "count", Width: 8, Numeric: true},
	{Name: "records", Width: 10, Numeric: true},
}}

type fileSpec struct {
	layouts     map[string]Layout
	transaction string
	entry       func(values map[string]string) (Entry, error)
}

// read walks a Cuaderno file, collects its transactions and checks them
// against the closing totals record.
func (spec fileSpec) read(data []byte) ([]Entry, error) {
	lines := splitLines(data)
	var (
		entries []Entry
		sum     int64
		closed  bool
	)
	for i, line := range lines {
		code := lineCode(line)
		if closed {
			return nil, fmt.Errorf("line %d after totals: %w", i+1, ErrRecordCode)
		}
		if code == codeFileTotal {
			values, err := fileTotal.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			if err := checkTotals(values, sum, len(entries), len(lines)); err != nil {
				return nil, err
			}
			closed = true
			continue
		}
		layout, ok := spec.layouts[code]
		if !ok {
			return nil, fmt.Errorf("line %d: code %s: %w", i+1, code, ErrRecordCode)
		}
		values, err := layout.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if code != spec.transaction {
			continue
		}
		entry, err := spec.entry(values)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		entries = append(entries, entry)
		sum += entry.AmountCents
	}
	if !closed {
		return nil, fmt.Errorf("missing totals record: %w", ErrTotalMismatch)
	}
	return entries, nil
}

func checkTotals(values map[string]string, sum int64, count, records int) error {
	total, err := parseCents(values["total"])
	if err != nil {
		return err
	}
	if total != sum {
		return fmt.Errorf("total %d, records sum %d: %w", total, sum, ErrTotalMismatch)
	}
	if n, _ := strconv.Atoi(values["count"]); n != count {
		return fmt.Errorf("count %d, records %d: %w", n, count, ErrTotalMismatch)
	}
	if n, _ := strconv.Atoi(values["records"]); n != records {
		return fmt.Errorf("record count %d, lines %d: %w", n, records, ErrTotalMismatch)
	}
	return nil
}

func renderFileTotal(total int64, count, records int) (string, error) {
	return fileTotal.Render(map[string]string{
		"total":   cents(total),
		"count":   strconv.Itoa(count),
		"records": strconv.Itoa(records),
	})
}

func joinRecords(lines []string) []byte {
	size := 0
	for _, l := range lines {
		size += len(l) + 2
	}
	out := make([]byte, 0, size)
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\r', '\n')
	}
	return out
}
