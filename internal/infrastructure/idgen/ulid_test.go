package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGenerator_Generate(t *testing.T) {
	gen := NewULIDGenerator()

	first := gen.Generate()
	second := gen.Generate()

	if first == second {
		t.Fatalf("expected unique IDs, got %s twice", first)
	}

	if _, err := ulid.Parse(first); err != nil {
		t.Fatalf("expected a valid ULID, got %q: %v", first, err)
	}
}
