package utils

import (
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		region      string
		expected    string
		shouldError bool
	}{
		{
			name:     "Italian mobile with country code",
			input:    "+393471234567",
			expected: "+393471234567",
		},
		{
			name:     "Italian mobile without country code",
			input:    "3471234567",
			expected: "+393471234567",
		},
		{
			name:     "Italian mobile with spaces",
			input:    "347 123 4567",
			expected: "+393471234567",
		},
		{
			name:     "Italian mobile with leading/trailing spaces",
			input:    "  3471234567  ",
			expected: "+393471234567",
		},
		{
			name:     "Italian landline Rome",
			input:    "06 1234 5678",
			expected: "+390612345678",
		},
		{
			name:     "Romanian mobile with explicit region",
			input:    "0721234567",
			region:   "RO",
			expected: "+40721234567",
		},
		{
			name:     "Romanian mobile with country code",
			input:    "+40 721 234 567",
			expected: "+40721234567",
		},
		{
			name:     "German mobile with dashes",
			input:    "+49-170-1234567",
			expected: "+491701234567",
		},
		{
			name:     "Irish mobile with parentheses",
			input:    "+353 (87) 123 4567",
			expected: "+353871234567",
		},
		{
			name:        "Invalid phone number - too short",
			input:       "123",
			shouldError: true,
		},
		{
			name:        "Invalid phone number - letters",
			input:       "abcdefghij",
			shouldError: true,
		},
		{
			name:        "Empty string",
			input:       "",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePhoneNumber(tt.input, tt.region)

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error for input %q, but got none", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for input %q: %v", tt.input, err)
				}
				if result != tt.expected {
					t.Errorf("For input %q, expected %q but got %q", tt.input, tt.expected, result)
				}
			}
		})
	}
}
