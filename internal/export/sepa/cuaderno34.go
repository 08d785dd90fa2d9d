package sepa

import (
	"fmt"
	"strconv"
)

const version34 = "34145"

// chargesShared splits transfer fees between ordering party and beneficiary.
const chargesShared = "3"

// Cuaderno 34.14 credit transfer records.
var (
	header34 = Layout{Code: "01", Fields: []Field{
		{Name: "version", Width: 5, Numeric: true, Value: version34},
		{Name: "data", Width: 3, Numeric: true, Value: "001"},
		{Name: "orderer", Width: 35},
		{Name: "created", Width: 8},
		{Name: "execution", Width: 8},
		{Name: "accountType", Width: 1},
		{Name: "iban", Width: 34},
		{Name: "charges", Width: 1},
		{Name: "name", Width: 70},
		{Name: "address1", Width: 50},
		{Name: "address2", Width: 50},
		{Name: "address3", Width: 40},
		{Name: "country", Width: 2},
	}}
	transfer34 = Layout{Code: "02", Fields: []Field{
		{Name: "version", Width: 5, Numeric: true, Value: version34},
		{Name: "data", Width: 3, Numeric: true, Value: "002"},
		{Name: "orderer", Width: 35},
		{Name: "reference", Width: 35},
		{Name: "accountType", Width: 1},
		{Name: "iban", Width: 34},
		{Name: "amount", Width: 10, Numeric: true},
		{Name: "charges", Width: 1},
		{Name: "bic", Width: 11},
		{Name: "name", Width: 70},
		{Name: "address1", Width: 50},
		{Name: "address2", Width: 50},
		{Name: "address3", Width: 40},
		{Name: "country", Width: 2},
		{Name: "concept", Width: 140},
		{Name: "beneficiaryId", Width: 35},
		{Name: "purpose", Width: 4},
	}}
	transferTotal34 = Layout{Code: "03", Fields: []Field{
		{Name: "orderer", Width: 35},
		{Name: "total", Width: 17, Numeric: true},
		{Name: "count", Width: 8, Numeric: true},
		{Name: "records", Width: 10, Numeric: true},
	}}
)

var reader34 = fileSpec{
	layouts: map[string]Layout{
		header34.Code:        header34,
		transfer34.Code:      transfer34,
		transferTotal34.Code: transferTotal34,
	},
	transaction: transfer34.Code,
	entry: func(v map[string]string) (Entry, error) {
		amount, err := parseCents(v["amount"])
		if err != nil {
			return Entry{}, err
		}
		return Entry{
			Reference:   v["reference"],
			Name:        v["name"],
			IBAN:        v["iban"],
			AmountCents: amount,
		}, nil
	},
}

// Generate34 renders a Cuaderno 34.14 credit transfer file. Initiator.ID is
// the ordering party's tax id.
func Generate34(b Batch) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	orderer := b.Initiator

	lines := make([]string, 0, len(b.Transactions)+3)
	add := func(l Layout, values map[string]string) error {
		line, err := l.Render(values)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	}

	addr := splitAddress(orderer.Address, 50, 50, 40)
	header := map[string]string{
		"orderer":   orderer.ID,
		"created":   date(b.CreatedAt),
		"execution": date(b.DueDate),
		"iban":      NormalizeIBAN(orderer.IBAN),
		"charges":   chargesShared,
		"name":      orderer.Name,
		"address1":  addr[0],
		"address2":  addr[1],
		"address3":  addr[2],
		"country":   CountryOf(orderer.IBAN, "ES"),
	}
	if header["iban"] != "" {
		header["accountType"] = "A"
	}
	if err := add(header34, header); err != nil {
		return nil, err
	}

	for _, tx := range b.Transactions {
		beneficiary := tx.Party
		addr := splitAddress(beneficiary.Address, 50, 50, 40)
		values := map[string]string{
			"orderer":       orderer.ID,
			"reference":     tx.Reference,
			"iban":          NormalizeIBAN(beneficiary.IBAN),
			"amount":        cents(tx.AmountCents),
			"charges":       chargesShared,
			"bic":           beneficiary.BIC,
			"name":          beneficiary.Name,
			"address1":      addr[0],
			"address2":      addr[1],
			"address3":      addr[2],
			"country":       CountryOf(beneficiary.IBAN, "ES"),
			"concept":       tx.Concept,
			"beneficiaryId": beneficiary.ID,
			"purpose":       tx.Purpose,
		}
		if values["iban"] != "" {
			values["accountType"] = "A"
		}
		if err := add(transfer34, values); err != nil {
			return nil, fmt.Errorf("%s: %w", tx.Reference, err)
		}
	}

	total := b.TotalCents()
	n := len(b.Transactions)
	if err := add(transferTotal34, map[string]string{
		"orderer": orderer.ID,
		"total":   cents(total),
		"count":   strconv.Itoa(n),
		"records": strconv.Itoa(n + 1),
	}); err != nil {
		return nil, err
	}
	last, err := renderFileTotal(total, n, len(lines)+1)
	if err != nil {
		return nil, err
	}
	return joinRecords(append(lines, last)), nil
}

// Parse34 reads a Cuaderno 34.14 file back into its transfer entries.
func Parse34(data []byte) ([]Entry, error) {
	return reader34.read(data)
}
