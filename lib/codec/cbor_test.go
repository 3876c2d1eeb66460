// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/parley-foundation/parley/lib/ref"
)

// sampleEntry is a representative stored object using json struct
// tags (the convention for types serving both JSON and CBOR).
type sampleEntry struct {
	Channel ref.ChannelKey `json:"channel"`
	Author  ref.PersonID   `json:"author"`
	Body    string         `json:"body"`
	Seq     int            `json:"seq"`
}

func TestMarshalDeterministic(t *testing.T) {
	entry := sampleEntry{
		Channel: ref.MustPairKey(ref.MustPersonID("prs-alice"), ref.MustPersonID("prs-bob")),
		Author:  ref.MustPersonID("prs-alice"),
		Body:    "hello",
		Seq:     7,
	}

	first, err := Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same value produced different encodings")
	}
}

func TestRoundTripPreservesRefs(t *testing.T) {
	original := sampleEntry{
		Channel: ref.MustPairKey(ref.MustPersonID("prs-alice"), ref.MustPersonID("prs-bob")),
		Author:  ref.MustPersonID("prs-bob"),
		Body:    "canonical",
		Seq:     1,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: %+v vs %+v", decoded, original)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{
		"body":    "hello",
		"seq":     3,
		"unknown": "future field",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Body != "hello" || decoded.Seq != 3 {
		t.Errorf("unexpected decode result: %+v", decoded)
	}
}
