package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Authentication", fmt.Errorf("%w: login: %w", ErrAuthentication, errors.New("NO")), "authentication"},
		{"Connection", fmt.Errorf("%w: dial", ErrConnection), "connection"},
		{"Fetch", ErrFetch, "fetch"},
		{"Parse", fmt.Errorf("uid 4: %w", ErrParse), "parse"},
		{"Transmission", fmt.Errorf("%w: 451", ErrTransmission), "transmission"},
		{"Unclassified", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestCredentialsIsZero(t *testing.T) {
	if !(Credentials{}).IsZero() {
		t.Error("Expected empty credentials to be zero")
	}
	if !(Credentials{Address: "a@x.com"}).IsZero() {
		t.Error("Expected credentials without a secret to be zero")
	}
	if (Credentials{Address: "a@x.com", Secret: "s"}).IsZero() {
		t.Error("Expected complete credentials not to be zero")
	}
}
