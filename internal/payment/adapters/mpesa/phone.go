package mpesa

import "strings"

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "+", "")

// FormatPhoneNumber normalizes a Kenyan mobile number to 2547XXXXXXXX or
// 2541XXXXXXXX. It returns false for anything else.
func FormatPhoneNumber(phone string) (string, bool) {
	cleaned := phoneCleaner.Replace(strings.TrimSpace(phone))
	if cleaned == "" || !isDigits(cleaned) {
		return "", false
	}
	switch {
	case len(cleaned) == 12 && (strings.HasPrefix(cleaned, "2547") || strings.HasPrefix(cleaned, "2541")):
		return cleaned, true
	case len(cleaned) == 10 && (strings.HasPrefix(cleaned, "07") || strings.HasPrefix(cleaned, "01")):
		return "254" + cleaned[1:], true
	}
	return "", false
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
