package httputil

import (
	"context"
	"testing"
)

func TestGenerateNonceShape(t *testing.T) {
	nonce := GenerateNonce()
	// 16 random bytes base64url-encoded without padding.
	if len(nonce) != 22 {
		t.Errorf("expected 22-character nonce, got %d: %q", len(nonce), nonce)
	}
}

func TestGenerateNonceIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		nonce := GenerateNonce()
		if seen[nonce] {
			t.Fatalf("nonce %q repeated", nonce)
		}
		seen[nonce] = true
	}
}

func TestNonceContextRoundTrip(t *testing.T) {
	ctx := ContextWithNonce(context.Background(), "test-nonce-abc")
	if got := NonceFromContext(ctx); got != "test-nonce-abc" {
		t.Errorf("expected %q, got %q", "test-nonce-abc", got)
	}
}

func TestNonceFromContextDefaultsEmpty(t *testing.T) {
	if got := NonceFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
