package sepa

import (
	"fmt"
	"strconv"
)

const version19 = "19143"

// Cuaderno 19.14 direct debit records.
var (
	header19 = Layout{Code: "01", Fields: []Field{
		{Name: "version", Width: 5, Numeric: true, Value: version19},
		{Name: "data", Width: 3, Numeric: true, Value: "001"},
		{Name: "presenter", Width: 35},
		{Name: "name", Width: 70},
		{Name: "created", Width: 8},
		{Name: "file", Width: 35},
		{Name: "entity", Width: 4, Numeric: true},
		{Name: "office", Width: 4, Numeric: true},
	}}
	creditor19 = Layout{Code: "02", Fields: []Field{
		{Name: "version", Width: 5, Numeric: true, Value: version19},
		{Name: "data", Width: 3, Numeric: true, Value: "002"},
		{Name: "creditor", Width: 35},
		{Name: "due", Width: 8},
		{Name: "name", Width: 70},
		{Name: "address1", Width: 50},
		{Name: "address2", Width: 50},
		{Name: "address3", Width: 40},
		{Name: "country", Width: 2},
		{Name: "iban", Width: 34},
	}}
	debit19 = Layout{Code: "03", Fields: []Field{
		{Name: "version", Width: 5, Numeric: true, Value: version19},
		{Name: "data", Width: 3, Numeric: true, Value: "003"},
		{Name: "reference", Width: 35},
		{Name: "mandate", Width: 35},
		{Name: "sequence", Width: 4},
		{Name: "category", Width: 4},
		{Name: "amount", Width: 10, Numeric: true},
		{Name: "signed", Width: 8},
		{Name: "bic", Width: 11},
		{Name: "name", Width: 70},
		{Name: "address1", Width: 50},
		{Name: "address2", Width: 50},
		{Name: "address3", Width: 40},
		{Name: "country", Width: 2},
		{Name: "idType", Width: 1},
		{Name: "debtorId", Width: 36},
		{Name: "accountType", Width: 1},
		{Name: "iban", Width: 34},
		{Name: "purpose", Width: 4},
		{Name: "remittance", Width: 140},
	}}
	creditorTotal19 = Layout{Code: "04", Fields: []Field{
		{Name: "creditor", Width: 35},
		{Name: "due", Width: 8},
		{Name: "total", Width: 17, Numeric: true},
		{Name: "count", Width: 8, Numeric: true},
		{Name: "records", Width: 10, Numeric: true},
	}}
)

var reader19 = fileSpec{
	layouts: map[string]Layout{
		header19.Code:        header19,
		creditor19.Code:      creditor19,
		debit19.Code:         debit19,
		creditorTotal19.Code: creditorTotal19,
	},
	transaction: debit19.Code,
	entry: func(v map[string]string) (Entry, error) {
		amount, err := parseCents(v["amount"])
		if err != nil {
			return Entry{}, err
		}
		return Entry{
			Reference:   v["reference"],
			MandateID:   v["mandate"],
			Name:        v["name"],
			IBAN:        v["iban"],
			AmountCents: amount,
		}, nil
	},
}

// Generate19 renders a Cuaderno 19.14 direct debit file. Initiator.ID must
// be the creditor identifier. Blank bank fields stay blank.
func Generate19(b Batch) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	creditor := b.Initiator
	entity, office := bankCodes(creditor.IBAN)

	lines := make([]string, 0, len(b.Transactions)+4)
	add := func(l Layout, values map[string]string) error {
		line, err := l.Render(values)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	}

	if err := add(header19, map[string]string{
		"presenter": creditor.ID,
		"name":      creditor.Name,
		"created":   date(b.CreatedAt),
		"file":      fileID(b),
		"entity":    entity,
		"office":    office,
	}); err != nil {
		return nil, err
	}

	addr := splitAddress(creditor.Address, 50, 50, 40)
	if err := add(creditor19, map[string]string{
		"creditor": creditor.ID,
		"due":      date(b.DueDate),
		"name":     creditor.Name,
		"address1": addr[0],
		"address2": addr[1],
		"address3": addr[2],
		"country":  CountryOf(creditor.IBAN, "ES"),
		"iban":     NormalizeIBAN(creditor.IBAN),
	}); err != nil {
		return nil, err
	}

	for _, tx := range b.Transactions {
		debtor := tx.Party
		addr := splitAddress(debtor.Address, 50, 50, 40)
		values := map[string]string{
			"reference":  tx.Reference,
			"mandate":    tx.MandateID,
			"sequence":   "RCUR",
			"amount":     cents(tx.AmountCents),
			"signed":     date(tx.MandateDate),
			"bic":        debtor.BIC,
			"name":       debtor.Name,
			"address1":   addr[0],
			"address2":   addr[1],
			"address3":   addr[2],
			"country":    CountryOf(debtor.IBAN, "ES"),
			"debtorId":   debtor.ID,
			"iban":       NormalizeIBAN(debtor.IBAN),
			"purpose":    tx.Purpose,
			"remittance": tx.Concept,
		}
		if debtor.ID != "" {
			values["idType"] = "2"
		}
		if values["iban"] != "" {
			values["accountType"] = "A"
		}
		if err := add(debit19, values); err != nil {
			return nil, fmt.Errorf("%s: %w", tx.Reference, err)
		}
	}

	total := b.TotalCents()
	n := len(b.Transactions)
	if err := add(creditorTotal19, map[string]string{
		"creditor": creditor.ID,
		"due":      date(b.DueDate),
		"total":    cents(total),
		"count":    strconv.Itoa(n),
		"records":  strconv.Itoa(n + 2),
	}); err != nil {
		return nil, err
	}
	last, err := renderFileTotal(total, n, len(lines)+1)
	if err != nil {
		return nil, err
	}
	return joinRecords(append(lines, last)), nil
}

// Parse19 reads a Cuaderno 19.14 file back into its debit entries.
func Parse19(data []byte) ([]Entry, error) {
	return reader19.read(data)
}

// bankCodes extracts the Spanish entity and office codes from an IBAN.
func bankCodes(iban string) (string, string) {
	iban = NormalizeIBAN(iban)
	if len(iban) != 24 || iban[:2] != "ES" || !isDigits(iban[4:12]) {
		return "", ""
	}
	return iban[4:8], iban[8:12]
}

func fileID(b Batch) string {
	if b.MessageID != "" {
		return b.MessageID
	}
	return "PRE" + b.CreatedAt.Format("20060102150405")
}
