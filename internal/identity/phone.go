package identity

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// NormalizePhone converts user input into canonical E.164 form. Bare
// ten-digit national numbers (optionally with a leading trunk zero) are
// prefixed with defaultCountry.
func NormalizePhone(raw, defaultCountry string) (string, error) {
	s := phoneSeparators.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidPhone
	}
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if !strings.HasPrefix(s, "+") {
		if len(s) == 11 && s[0] == '0' {
			s = s[1:]
		}
		if len(s) != 10 || !allDigits(s) {
			return "", ErrInvalidPhone
		}
		s = countryPrefix(defaultCountry) + s
	}
	if !e164.MatchString(s) {
		return "", ErrInvalidPhone
	}
	return s, nil
}

func countryPrefix(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "+91"
	}
	if !strings.HasPrefix(code, "+") {
		return "+" + code
	}
	return code
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
