package sepa

import (
	"fmt"
	"math/big"
	"strings"
)

var ibanLengths = map[string]int{
	"AD": 24, "AT": 20, "BE": 16, "CH": 21, "DE": 22, "ES": 24, "FR": 27,
	"GB": 22, "IE": 22, "IT": 27, "LU": 20, "NL": 18, "PT": 25,
}

// NormalizeIBAN strips separators and upper-cases the account number.
func NormalizeIBAN(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// ValidIBAN checks shape, known country length and the ISO 13616 check digits.
func ValidIBAN(s string) bool {
	iban := NormalizeIBAN(s)
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	if !isUpperAlpha(iban[:2]) || !isDigits(iban[2:4]) {
		return false
	}
	if want, ok := ibanLengths[iban[:2]]; ok && len(iban) != want {
		return false
	}
	for i := 0; i < len(iban); i++ {
		if !isAlnum(iban[i]) {
			return false
		}
	}
	return mod97(iban[4:]+iban[:4]) == 1
}

// ValidBIC accepts 8 or 11 character business identifier codes.
func ValidBIC(s string) bool {
	bic := strings.ToUpper(strings.TrimSpace(s))
	if len(bic) != 8 && len(bic) != 11 {
		return false
	}
	if !isUpperAlpha(bic[:6]) {
		return false
	}
	for i := 6; i < len(bic); i++ {
		if !isAlnum(bic[i]) {
			return false
		}
	}
	return true
}

// CountryOf returns the country prefix of an IBAN, or fallback.
func CountryOf(iban, fallback string) string {
	iban = NormalizeIBAN(iban)
	if len(iban) >= 2 && isUpperAlpha(iban[:2]) {
		return iban[:2]
	}
	return fallback
}

// CreditorID derives the SEPA creditor identifier (AT-02) from a national
// tax id: country, ISO 7064 mod 97-10 check digits, a three character
// business code and the tax id itself.
func CreditorID(country, businessCode, nif string) (string, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 || !isUpperAlpha(country) {
		country = "ES"
	}
	id := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 128 && isAlnum(byte(r)) {
			return r
		}
		return -1
	}, nif)
	if id == "" {
		return "", ErrInvalidNIF
	}
	code := strings.ToUpper(strings.TrimSpace(businessCode))
	if len(code) < 3 {
		code = strings.Repeat("0", 3-len(code)) + code
	}
	code = code[:3]

	check := 98 - mod97(id+country+"00")
	return fmt.Sprintf("%s%02d%s%s", country, check, code, id), nil
}

// mod97 expands letters to 10..35 and returns the remainder modulo 97.
func mod97(s string) int {
	var digits strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			fmt.Fprintf(&digits, "%d", int(c-'A')+10)
			continue
		}
		digits.WriteByte(c)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return -1
	}
	return int(new(big.Int).Mod(n, big.NewInt(97)).Int64())
}

func isUpperAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}
