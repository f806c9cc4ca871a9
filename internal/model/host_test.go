package model

import (
	"errors"
	"testing"
)

// TestSubstituteHost tests compare domain substitution.
func TestSubstituteHost(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		raw      string
		domain   string
		expected string
		wantErr  error
	}{
		{"no domain", "https://a.com/x", "", "https://a.com/x", nil},
		{"host only", "https://a.com/x?q=1#f", "b.com", "https://b.com/x?q=1#f", nil},
		{"with port", "https://a.com/x", "b.com:8443", "https://b.com:8443/x", nil},
		{"drops old port", "http://a.com:8080/", "b.com", "http://b.com/", nil},
		{"invalid domain", "https://a.com/", "b.com/path", "", ErrInvalidDomain},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := SubstituteHost(tc.raw, tc.domain)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}

	t.Run("relative url", func(t *testing.T) {
		t.Parallel()
		if _, err := SubstituteHost("/about", "b.com"); err == nil {
			t.Error("expected error for relative URL")
		}
	})
}
