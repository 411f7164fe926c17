package payment

import (
	"regexp"
	"strings"
)

// Kenyan mobile numbers: 07xxxxxxxx, 01xxxxxxxx, or the same with a 254 / +254 prefix
var kenyanMobile = regexp.MustCompile(`^(?:0|254|\+254)[17]\d{8}$`)

// IsKenyanMobile reports whether phone is a Kenyan mobile number
func IsKenyanMobile(phone string) bool {
	return kenyanMobile.MatchString(strings.TrimSpace(phone))
}
