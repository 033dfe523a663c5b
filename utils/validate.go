package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"referral-rewards-system/models"
)

var (
	phonePattern         = regexp.MustCompile(`^\+?[0-9\s-]{7,15}$`)
	payoutAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// ValidDisplayName accepts a trimmed name of 2-50 characters.
func ValidDisplayName(s string) bool {
	return TextInRange(s, 2, 50)
}

// TextInRange reports whether the trimmed input length falls within [min,max].
func TextInRange(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

// NormalizePhone validates a typed phone number and prepends the missing '+'
// when the user left it off but included the country code digits.
func NormalizePhone(s string) (string, bool) {
	phone := strings.TrimSpace(s)
	if !phonePattern.MatchString(phone) {
		return "", false
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone, true
}

// ValidPayoutAddress accepts 0x followed by exactly 40 hex characters.
func ValidPayoutAddress(s string) bool {
	return payoutAddressPattern.MatchString(strings.TrimSpace(s))
}

// FormatLocation renders a captured location for confirmation messages.
func FormatLocation(loc models.Location) string {
	if loc.Kind == models.LocationKindGPS {
		return fmt.Sprintf("GPS: Lat %.4f, Lon %.4f", loc.Latitude, loc.Longitude)
	}
	if loc.Text == "" {
		return "Not provided"
	}
	return loc.Text
}
