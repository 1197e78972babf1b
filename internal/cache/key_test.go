package cache

import "testing"

func TestGenerateCacheKey(t *testing.T) {
	a := GenerateCacheKey("How much did I spend on coffee?")
	b := GenerateCacheKey("how much did i spend on coffee?  ")
	c := GenerateCacheKey("How much did I spend on rent?")

	if a != b {
		t.Error("case and whitespace should not change the key")
	}
	if a == c {
		t.Error("different questions must produce different keys")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256 length 64, got %d", len(a))
	}
}
