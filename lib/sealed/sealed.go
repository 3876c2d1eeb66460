// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for dedicated-credential
// payloads. A credential issued on contact acceptance is sealed to the
// peer's public key before it is handed to the transport port, so the
// transport layer never sees permission contents in the clear.
//
// Ciphertext is base64-encoded for embedding in JSON payload fields.
// The encoding is handled internally: callers pass plaintext []byte to
// [Encrypt] and receive a base64 string, and the reverse for [Decrypt].
package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// Keypair holds an age x25519 keypair. The public key (age1...) is
// safe to publish in contact credentials; the private key
// (AGE-SECRET-KEY-1...) must never be logged or sent to a peer.
type Keypair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeypair generates a new age x25519 keypair.
func GenerateKeypair() (Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return Keypair{}, fmt.Errorf("generating age keypair: %w", err)
	}
	return Keypair{
		PrivateKey: identity.String(),
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// ParsePublicKey validates an age public key string and returns the
// recipient. Use this to validate keys received in contact credentials
// before storing them.
func ParsePublicKey(publicKey string) (age.Recipient, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing age public key: %w", err)
	}
	return recipient, nil
}

// Encrypt encrypts plaintext to one or more age public keys and
// returns base64-encoded ciphertext.
func Encrypt(plaintext []byte, publicKeys ...string) (string, error) {
	if len(publicKeys) == 0 {
		return "", fmt.Errorf("encrypt: at least one recipient required")
	}
	recipients := make([]age.Recipient, 0, len(publicKeys))
	for _, key := range publicKeys {
		recipient, err := ParsePublicKey(key)
		if err != nil {
			return "", err
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("starting age encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt decrypts base64-encoded age ciphertext with a private key.
func Decrypt(ciphertextBase64, privateKey string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing age private key: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext base64: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("starting age decryption: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}
