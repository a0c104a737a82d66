package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for numbers written without a country code.
const DefaultRegion = "IT"

// NormalizePhoneNumber normalizes a phone number to E.164 format.
// Numbers without a country code are parsed in region (DefaultRegion when empty).
func NormalizePhoneNumber(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if region == "" {
		region = DefaultRegion
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", phonenumbers.ErrNotANumber
	}

	// Format to E.164 (e.g., +393471234567)
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
