package utils

import (
	"github.com/nyaruka/phonenumbers"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
)

// NormalizePhone converts raw phone input into E.164 format (+<countrycode><number>).
// defaultRegion is the ISO country code like "IN", "US", etc.
func NormalizePhone(raw string, defaultRegion string) (string, error) {
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", apperr.Invalid("invalid phone number %q", raw)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", apperr.Invalid("invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
