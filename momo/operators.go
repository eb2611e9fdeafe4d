// Package momo holds the mobile money operator directory for Cameroon
// and the phone number helpers shared by the payment flow.
package momo

import "strings"

// CountryCallingCode is Cameroon's international calling code, without
// the leading plus.
const CountryCallingCode = "237"

type OperatorID string

const (
	MTN_MOMO_CMR OperatorID = "MTN_MOMO_CMR"
	ORANGE_CMR   OperatorID = "ORANGE_CMR"
)

// Operator describes one mobile money carrier. Prefixes are the leading
// digits of subscriber numbers belonging to that carrier; no prefix may
// appear under more than one operator.
type Operator struct {
	ID       OperatorID
	Name     string
	Prefixes []string
}

var operators = []Operator{
	{
		ID:       MTN_MOMO_CMR,
		Name:     "MTN Mobile Money",
		Prefixes: []string{"650", "651", "652", "653", "654"},
	},
	{
		ID:       ORANGE_CMR,
		Name:     "Orange Money",
		Prefixes: []string{"690", "691", "692", "693", "694", "695", "696", "697", "698", "699"},
	},
}

// Operators returns the directory in its fixed order. The result is a
// copy; callers may not mutate the directory.
func Operators() []Operator {
	out := make([]Operator, len(operators))
	copy(out, operators)
	return out
}

// ByID looks an operator up by its correspondent identifier.
func ByID(id OperatorID) (Operator, bool) {
	for _, op := range operators {
		if op.ID == id {
			return op, true
		}
	}
	return Operator{}, false
}

// DetectOperator guesses the carrier from a phone number by prefix.
// Matching ignores any formatting characters and accepts numbers both
// with and without the country calling code. First match in directory
// order wins.
func DetectOperator(phoneNumber string) (OperatorID, bool) {
	cleaned := stripNonDigits(phoneNumber)

	for _, op := range operators {
		for _, prefix := range op.Prefixes {
			if strings.HasPrefix(cleaned, CountryCallingCode+prefix) || strings.HasPrefix(cleaned, prefix) {
				return op.ID, true
			}
		}
	}

	return "", false
}

// FormatPhoneNumber normalizes a subscriber number to international
// form: formatting characters are dropped and a bare 9 digit number
// gets the country calling code prepended. Numbers of any other length
// pass through unchanged.
func FormatPhoneNumber(phoneNumber string) string {
	cleaned := stripNonDigits(phoneNumber)

	if len(cleaned) == 9 && !strings.HasPrefix(cleaned, CountryCallingCode) {
		cleaned = CountryCallingCode + cleaned
	}

	return cleaned
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
