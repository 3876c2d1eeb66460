// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	plaintext := []byte(`{"canMessage":true,"canCall":false}`)
	ciphertext, err := Encrypt(plaintext, keypair.PublicKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(ciphertext, "canMessage") {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip mismatch: %q vs %q", decrypted, plaintext)
	}
}

func TestEncryptMultipleRecipients(t *testing.T) {
	first, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	second, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	plaintext := []byte("shared payload")
	ciphertext, err := Encrypt(plaintext, first.PublicKey, second.PublicKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	for _, keypair := range []Keypair{first, second} {
		decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
		if err != nil {
			t.Fatalf("Decrypt with %s: %v", keypair.PublicKey, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("round trip mismatch for %s", keypair.PublicKey)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	owner, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	ciphertext, err := Encrypt([]byte("secret"), owner.PublicKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(ciphertext, other.PrivateKey); err == nil {
		t.Fatal("expected decryption failure with wrong key")
	}
}

func TestEncryptRequiresRecipient(t *testing.T) {
	if _, err := Encrypt([]byte("data")); err == nil {
		t.Fatal("expected error for zero recipients")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if _, err := ParsePublicKey("not-an-age-key"); err == nil {
		t.Fatal("expected error for invalid public key")
	}
}
