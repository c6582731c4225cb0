// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wordlist implements the WordProvider external collaborator:
// length-partitioned word lists with validity checks and
// cryptographically random selection.
package wordlist

import (
	"bufio"
	"crypto/rand"
	"embed"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
)

//go:embed defaults/*.txt
var embeddedDefaults embed.FS

// Provider answers the two questions a GameRoom needs of the word
// list: whether a candidate guess is a real word, and a fresh target
// of a given length.
type Provider interface {
	IsValid(word string) bool
	PickWord(length int) (string, error)
	Lengths() []int
}

// FileProvider loads one word list per supported length, from an
// environment-configured directory (WORD_LIST_DIR/answers_<n>.txt) or
// from the embedded small defaults when unset.
type FileProvider struct {
	once  sync.Once
	mu    sync.RWMutex
	words map[int][]string   // length -> words
	valid map[string]struct{} // lowercase word -> present, across all lengths
	err   error
}

// NewFileProvider constructs a FileProvider for the given lengths,
// loading eagerly from dir (or embedded defaults if dir is empty).
func NewFileProvider(dir string, lengths []int) (*FileProvider, error) {
	p := &FileProvider{}
	p.load(dir, lengths)
	return p, p.err
}

func (p *FileProvider) load(dir string, lengths []int) {
	p.once.Do(func() {
		p.words = make(map[int][]string)
		p.valid = make(map[string]struct{})

		for _, n := range lengths {
			var lines []string
			var err error
			if dir != "" {
				lines, err = readWordFile(fmt.Sprintf("%s/answers_%d.txt", dir, n), n)
			} else {
				lines, err = readEmbedded(n)
			}
			if err != nil {
				p.err = fmt.Errorf("wordlist: loading length %d: %w", n, err)
				return
			}
			if len(lines) == 0 {
				p.err = fmt.Errorf("wordlist: length %d word list is empty", n)
				return
			}
			p.words[n] = lines
			for _, w := range lines {
				p.valid[w] = struct{}{}
			}
		}
	})
}

func readWordFile(path string, length int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanWords(f, length)
}

func readEmbedded(length int) ([]string, error) {
	f, err := embeddedDefaults.Open(fmt.Sprintf("defaults/answers_%d.txt", length))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanWords(f, length)
}

func scanWords(f io.Reader, length int) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(strings.ToLower(sc.Text()))
		if len(w) == length && isAlpha(w) {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsValid reports whether word (case-insensitively) appears in any of
// the loaded length lists.
func (p *FileProvider) IsValid(word string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.valid[strings.ToLower(word)]
	return ok
}

// PickWord returns a cryptographically random word of the requested
// length.
func (p *FileProvider) PickWord(length int) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list, ok := p.words[length]
	if !ok || len(list) == 0 {
		return "", fmt.Errorf("wordlist: no words of length %d", length)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		return "", fmt.Errorf("wordlist: random selection: %w", err)
	}
	return list[n.Int64()], nil
}

// Lengths returns the word lengths this provider was loaded with.
func (p *FileProvider) Lengths() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, 0, len(p.words))
	for n := range p.words {
		out = append(out, n)
	}
	return out
}

// PickLength chooses uniformly at random among the configured game
// word lengths (spec default {5,6,7}).
func PickLength(lengths []int) (int, error) {
	if len(lengths) == 0 {
		return 0, fmt.Errorf("wordlist: no configured lengths")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(lengths))))
	if err != nil {
		return 0, fmt.Errorf("wordlist: random length selection: %w", err)
	}
	return lengths[n.Int64()], nil
}
