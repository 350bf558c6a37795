package credential

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestIssueProducesHexKeyAndVerifiableHash(t *testing.T) {
	store := NewStore()

	plaintext, hash, err := store.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if len(plaintext) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(plaintext))
	}
	if _, err := hex.DecodeString(plaintext); err != nil {
		t.Fatalf("plaintext is not hex: %v", err)
	}
	if strings.Contains(hash, plaintext) {
		t.Fatalf("hash must not embed the plaintext")
	}

	if !store.Verify(plaintext, hash) {
		t.Fatalf("verify rejected the issued key")
	}
	if store.Verify("wrong-key", hash) {
		t.Fatalf("verify accepted a wrong key")
	}
}

func TestIssueIsUnique(t *testing.T) {
	store := NewStore()

	first, _, err := store.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, _, err := store.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if first == second {
		t.Fatalf("two issued keys are identical")
	}
}

func TestHashClientSuppliedKey(t *testing.T) {
	store := NewStore()

	hash, err := store.Hash("client-chosen-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !store.Verify("client-chosen-secret", hash) {
		t.Fatalf("verify rejected the hashed key")
	}
	if store.Verify("other-secret", hash) {
		t.Fatalf("verify accepted a different key")
	}
}

func TestRegenerateReplacesCredential(t *testing.T) {
	store := NewStore()

	_, oldHash, err := store.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	plaintext, hash, err := store.Regenerate()
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	if hash == oldHash {
		t.Fatalf("regenerated hash equals the old hash")
	}
	if !store.Verify(plaintext, hash) {
		t.Fatalf("verify rejected the regenerated key")
	}
}
