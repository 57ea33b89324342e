package utilities_test

import (
	"testing"

	"github.com/thislinkplease/midterm-cross-platform/pkg/utilities"
)

func TestNewUserIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := utilities.NewUserID()
		if id == "" {
			t.Fatal("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %s after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestNewRequestIDLength(t *testing.T) {
	// KSUIDs are always 27 characters in their string form.
	if got := len(utilities.NewRequestID()); got != 27 {
		t.Errorf("expected 27 chars, got %d", got)
	}
}
