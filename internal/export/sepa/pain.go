package sepa

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	NamespacePain008 = "urn:iso:std:iso:20022:tech:xsd:pain.008.001.02"
	NamespacePain001 = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03"

	notProvided = "NOTPROVIDED"
)

type Pain008 struct {
	XMLName xml.Name     `xml:"Document"`
	Xmlns   string       `xml:"xmlns,attr"`
	Body    DirectDebits `xml:"CstmrDrctDbtInitn"`
}

type DirectDebits struct {
	GroupHeader GroupHeader     `xml:"GrpHdr"`
	Payment     DebitPaymentInf `xml:"PmtInf"`
}

type Pain001 struct {
	XMLName xml.Name        `xml:"Document"`
	Xmlns   string          `xml:"xmlns,attr"`
	Body    CreditTransfers `xml:"CstmrCdtTrfInitn"`
}

type CreditTransfers struct {
	GroupHeader GroupHeader        `xml:"GrpHdr"`
	Payment     TransferPaymentInf `xml:"PmtInf"`
}

type GroupHeader struct {
	MessageID    string       `xml:"MsgId"`
	CreatedAt    string       `xml:"CreDtTm"`
	Transactions int          `xml:"NbOfTxs"`
	ControlSum   string       `xml:"CtrlSum"`
	Initiator    InitiatingPt `xml:"InitgPty"`
}

type InitiatingPt struct {
	Name string   `xml:"Nm"`
	ID   *OtherID `xml:"Id>OrgId>Othr,omitempty"`
}

type OtherID struct {
	ID     string `xml:"Id"`
	Scheme string `xml:"SchmeNm>Prtry,omitempty"`
}

type PaymentType struct {
	ServiceLevel string `xml:"SvcLvl>Cd"`
	LocalInstr   string `xml:"LclInstrm>Cd,omitempty"`
	Sequence     string `xml:"SeqTp,omitempty"`
	Category     string `xml:"CtgyPurp>Cd,omitempty"`
}

type PartyName struct {
	Name    string   `xml:"Nm"`
	Address *Address `xml:"PstlAdr,omitempty"`
}

type Address struct {
	Country string   `xml:"Ctry,omitempty"`
	Lines   []string `xml:"AdrLine,omitempty"`
}

type Account struct {
	IBAN string `xml:"Id>IBAN"`
}

type Agent struct {
	BIC   string   `xml:"FinInstnId>BIC,omitempty"`
	Other *OtherID `xml:"FinInstnId>Othr,omitempty"`
}

type Amount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type DebitPaymentInf struct {
	ID             string       `xml:"PmtInfId"`
	Method         string       `xml:"PmtMtd"`
	Transactions   int          `xml:"NbOfTxs"`
	ControlSum     string       `xml:"CtrlSum"`
	Type           PaymentType  `xml:"PmtTpInf"`
	CollectionDate string       `xml:"ReqdColltnDt"`
	Creditor       PartyName    `xml:"Cdtr"`
	CreditorAcct   Account      `xml:"CdtrAcct"`
	CreditorAgent  Agent        `xml:"CdtrAgt"`
	SchemeID       OtherID      `xml:"CdtrSchmeId>Id>PrvtId>Othr"`
	Debits         []DebitTxInf `xml:"DrctDbtTxInf"`
}

type DebitTxInf struct {
	EndToEndID  string    `xml:"PmtId>EndToEndId"`
	Amount      Amount    `xml:"InstdAmt"`
	MandateID   string    `xml:"DrctDbtTx>MndtRltdInf>MndtId"`
	SignedAt    string    `xml:"DrctDbtTx>MndtRltdInf>DtOfSgntr,omitempty"`
	DebtorAgent Agent     `xml:"DbtrAgt"`
	Debtor      PartyName `xml:"Dbtr"`
	DebtorAcct  Account   `xml:"DbtrAcct"`
	Remittance  string    `xml:"RmtInf>Ustrd,omitempty"`
}

type TransferPaymentInf struct {
	ID            string          `xml:"PmtInfId"`
	Method        string          `xml:"PmtMtd"`
	Transactions  int             `xml:"NbOfTxs"`
	ControlSum    string          `xml:"CtrlSum"`
	Type          PaymentType     `xml:"PmtTpInf"`
	ExecutionDate string          `xml:"ReqdExctnDt"`
	Debtor        PartyName       `xml:"Dbtr"`
	DebtorAcct    Account         `xml:"DbtrAcct"`
	DebtorAgent   Agent           `xml:"DbtrAgt"`
	Charges       string          `xml:"ChrgBr"`
	Transfers     []TransferTxInf `xml:"CdtTrfTxInf"`
}

type TransferTxInf struct {
	EndToEndID    string    `xml:"PmtId>EndToEndId"`
	Amount        Amount    `xml:"Amt>InstdAmt"`
	CreditorAgent *Agent    `xml:"CdtrAgt,omitempty"`
	Creditor      PartyName `xml:"Cdtr"`
	CreditorAcct  Account   `xml:"CdtrAcct"`
	Purpose       string    `xml:"Purp>Cd,omitempty"`
	Remittance    string    `xml:"RmtInf>Ustrd,omitempty"`
}

// GeneratePain008 renders a pain.008 direct debit initiation for b.
func GeneratePain008(b Batch) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	creditor := b.Initiator
	total := FormatCents(b.TotalCents())

	payment := DebitPaymentInf{
		ID:             b.MessageID + "-1",
		Method:         "DD",
		Transactions:   len(b.Transactions),
		ControlSum:     total,
		Type:           PaymentType{ServiceLevel: "SEPA", LocalInstr: "CORE", Sequence: "RCUR"},
		CollectionDate: isoDate(b.DueDate),
		Creditor:       partyName(creditor),
		CreditorAcct:   Account{IBAN: NormalizeIBAN(creditor.IBAN)},
		CreditorAgent:  agent(creditor.BIC),
		SchemeID:       OtherID{ID: creditor.ID, Scheme: "SEPA"},
	}
	for _, tx := range b.Transactions {
		payment.Debits = append(payment.Debits, DebitTxInf{
			EndToEndID:  Truncate(Clean(tx.Reference), 35),
			Amount:      Amount{Currency: "EUR", Value: FormatCents(tx.AmountCents)},
			MandateID:   Truncate(Clean(tx.MandateID), 35),
			SignedAt:    isoDate(tx.MandateDate),
			DebtorAgent: agent(tx.Party.BIC),
			Debtor:      partyName(tx.Party),
			DebtorAcct:  Account{IBAN: NormalizeIBAN(tx.Party.IBAN)},
			Remittance:  Truncate(Clean(tx.Concept), 140),
		})
	}

	doc := Pain008{
		Xmlns: NamespacePain008,
		Body: DirectDebits{
			GroupHeader: groupHeader(b, total),
			Payment:     payment,
		},
	}
	return marshal(doc)
}

// GeneratePain001 renders a pain.001 credit transfer initiation for b.
func GeneratePain001(b Batch) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	debtor := b.Initiator
	total := FormatCents(b.TotalCents())

	payment := TransferPaymentInf{
		ID:            b.MessageID + "-1",
		Method:        "TRF",
		Transactions:  len(b.Transactions),
		ControlSum:    total,
		Type:          PaymentType{ServiceLevel: "SEPA", Category: "SALA"},
		ExecutionDate: isoDate(b.DueDate),
		Debtor:        partyName(debtor),
		DebtorAcct:    Account{IBAN: NormalizeIBAN(debtor.IBAN)},
		DebtorAgent:   agent(debtor.BIC),
		Charges:       "SLEV",
	}
	for _, tx := range b.Transactions {
		var creditorAgent *Agent
		if ValidBIC(tx.Party.BIC) {
			a := agent(tx.Party.BIC)
			creditorAgent = &a
		}
		payment.Transfers = append(payment.Transfers, TransferTxInf{
			EndToEndID:    Truncate(Clean(tx.Reference), 35),
			Amount:        Amount{Currency: "EUR", Value: FormatCents(tx.AmountCents)},
			CreditorAgent: creditorAgent,
			Creditor:      partyName(tx.Party),
			CreditorAcct:  Account{IBAN: NormalizeIBAN(tx.Party.IBAN)},
			Purpose:       tx.Purpose,
			Remittance:    Truncate(Clean(tx.Concept), 140),
		})
	}

	doc := Pain001{
		Xmlns: NamespacePain001,
		Body: CreditTransfers{
			GroupHeader: groupHeader(b, total),
			Payment:     payment,
		},
	}
	return marshal(doc)
}

func groupHeader(b Batch, total string) GroupHeader {
	h := GroupHeader{
		MessageID:    b.MessageID,
		CreatedAt:    b.CreatedAt.Format("2006-01-02T15:04:05"),
		Transactions: len(b.Transactions),
		ControlSum:   total,
		Initiator:    InitiatingPt{Name: Truncate(Clean(b.Initiator.Name), 70)},
	}
	if b.Initiator.ID != "" {
		h.Initiator.ID = &OtherID{ID: b.Initiator.ID}
	}
	return h
}

func partyName(p Party) PartyName {
	out := PartyName{Name: Truncate(Clean(p.Name), 70)}
	lines := splitAddress(p.Address, 70, 70)
	if lines[0] != "" {
		addr := &Address{Country: CountryOf(p.IBAN, "ES")}
		for _, l := range lines {
			if l != "" {
				addr.Lines = append(addr.Lines, l)
			}
		}
		out.Address = addr
	}
	return out
}

func agent(bic string) Agent {
	if ValidBIC(bic) {
		return Agent{BIC: strings.ToUpper(strings.TrimSpace(bic))}
	}
	return Agent{Other: &OtherID{ID: notProvided}}
}

func marshal(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal payment message: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
