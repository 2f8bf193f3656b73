package identity

import (
	"testing"

	"pathways/internal/storage"
)

func TestNonceIssueAndConsume(t *testing.T) {
	nonces := NewNonceStore(storage.NewMemStore(), "test_nonce")

	value, err := nonces.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if value == "" {
		t.Fatal("Expected non-empty nonce")
	}

	got, ok := nonces.Consume()
	if !ok || got != value {
		t.Errorf("Expected consumed nonce %q, got %q (ok=%v)", value, got, ok)
	}
}

func TestNonceIsSingleUse(t *testing.T) {
	nonces := NewNonceStore(storage.NewMemStore(), "test_nonce")

	if _, err := nonces.Issue(); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, ok := nonces.Consume(); !ok {
		t.Fatal("First consume should succeed")
	}
	if _, ok := nonces.Consume(); ok {
		t.Error("Second consume must fail: nonces are single use")
	}
}

func TestNonceReissueReplacesPrevious(t *testing.T) {
	nonces := NewNonceStore(storage.NewMemStore(), "test_nonce")

	first, _ := nonces.Issue()
	second, err := nonces.Issue()
	if err != nil {
		t.Fatalf("Reissue failed: %v", err)
	}
	if first == second {
		t.Error("Expected a fresh nonce on reissue")
	}

	got, ok := nonces.Consume()
	if !ok || got != second {
		t.Errorf("Expected latest nonce %q, got %q", second, got)
	}
}

func TestNonceConsumeEmpty(t *testing.T) {
	nonces := NewNonceStore(storage.NewMemStore(), "test_nonce")

	if _, ok := nonces.Consume(); ok {
		t.Error("Consume on an empty store must report absence")
	}
}
