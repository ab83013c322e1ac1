package mpesa

import (
	"strings"
	"unicode"
)

const (
	countryCode      = "254"
	subscriberLength = 12
)

// NormalizePhone converts a Kenyan mobile number to the 2547XXXXXXXX /
// 2541XXXXXXXX form the provider expects.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, raw)

	switch {
	case strings.HasPrefix(phone, "07"), strings.HasPrefix(phone, "01"):
		phone = countryCode + phone[1:]
	case strings.HasPrefix(phone, "+"+countryCode):
		phone = phone[1:]
	case strings.HasPrefix(phone, countryCode):
	default:
		return "", ErrInvalidPhoneFormat
	}

	if len(phone) != subscriberLength {
		return "", ErrInvalidPhoneFormat
	}

	return phone, nil
}
