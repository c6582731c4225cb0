// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package wordlist

import "testing"

func TestFileProviderLoadsEmbeddedDefaults(t *testing.T) {
	p, err := NewFileProvider("", []int{5, 6, 7})
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{5, 6, 7} {
		word, err := p.PickWord(n)
		if err != nil {
			t.Fatalf("length %d: %v", n, err)
		}
		if len(word) != n {
			t.Fatalf("length %d: got word %q of length %d", n, word, len(word))
		}
		if !p.IsValid(word) {
			t.Fatalf("picked word %q not reported valid", word)
		}
	}
}

func TestFileProviderRejectsUnknownWord(t *testing.T) {
	p, err := NewFileProvider("", []int{5})
	if err != nil {
		t.Fatal(err)
	}
	if p.IsValid("zzzzznotaword") {
		t.Fatal("expected invalid word to be rejected")
	}
}

func TestPickLengthStaysWithinConfigured(t *testing.T) {
	lengths := []int{5, 6, 7}
	seen := make(map[int]bool)
	for i := 0; i < 50; i++ {
		n, err := PickLength(lengths)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, l := range lengths {
			if l == n {
				found = true
			}
		}
		if !found {
			t.Fatalf("picked length %d not in %v", n, lengths)
		}
		seen[n] = true
	}
}

func TestPickLengthEmptyErrors(t *testing.T) {
	if _, err := PickLength(nil); err == nil {
		t.Fatal("expected error for empty length set")
	}
}
