package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// DefaultInvoiceNumberTemplate numbers invoices per emission month.
const DefaultInvoiceNumberTemplate = "FAC-{YYYY}{MM}-{SEQ6}"

// FormatInvoiceNumber renders template for an emission time and sequence.
// issuedAt must already be in the billing time zone.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	out := strings.NewReplacer(
		"{YYYY}", issuedAt.Format("2006"),
		"{YY}", issuedAt.Format("06"),
		"{MM}", issuedAt.Format("01"),
		"{DD}", issuedAt.Format("02"),
		"{SEQ}", strconv.FormatInt(seq, 10),
	).Replace(template)

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// NumberPrefix is the part of a rendered number before the sequence. It is
// used to find the highest sequence already issued in a month.
func NumberPrefix(template string, issuedAt time.Time) string {
	idx := strings.Index(template, "{SEQ")
	if idx < 0 {
		return template
	}
	prefix, err := FormatInvoiceNumber(template[:idx]+"{SEQ}", issuedAt, 1)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(prefix, "1")
}

// ParseSequence extracts the trailing sequence from a rendered number.
func ParseSequence(number, prefix string) (int64, bool) {
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
