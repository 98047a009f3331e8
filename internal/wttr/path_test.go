// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package wttr

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildPath(t *testing.T) {
	t.Run("valid locations produce a slash-prefixed path without spaces", func(t *testing.T) {
		tests := []struct {
			name     string
			location string
			want     string
		}{
			{"two words", "Frasso Telesino", "/Frasso+Telesino"},
			{"single word", "Berlin", "/Berlin"},
			{"single character", "x", "/x"},
			{"leading and trailing spaces", " Rome ", "/+Rome+"},
			{"consecutive spaces", "New  York", "/New++York"},
			{"only spaces", "   ", "/+++"},
			{"non-ascii characters are kept", "München Süd", "/München+Süd"},
			{"other characters are not escaped", "Saint-Étienne?&#", "/Saint-Étienne?&#"},
			{"maximum length", strings.Repeat("a", MaxLocationLen), "/" + strings.Repeat("a", MaxLocationLen)},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				got, err := BuildPath(tc.location)
				if err != nil {
					t.Fatalf("failed to build path: %s", err)
				}
				if got != tc.want {
					t.Errorf("expected path to be %q, got %q", tc.want, got)
				}
				if !strings.HasPrefix(got, "/") {
					t.Errorf("expected path to start with a slash, got %q", got)
				}
				if strings.Contains(got, " ") {
					t.Errorf("expected path to contain no spaces, got %q", got)
				}
				if len(got) != len(tc.location)+1 {
					t.Errorf("expected path length to be %d, got %d", len(tc.location)+1, len(got))
				}
			})
		}
	})
	t.Run("every length in range succeeds", func(t *testing.T) {
		for n := 1; n <= MaxLocationLen; n++ {
			location := strings.Repeat("a b", n)[:n]
			got, err := BuildPath(location)
			if err != nil {
				t.Fatalf("failed to build path for length %d: %s", n, err)
			}
			if len(got) != n+1 || got[0] != '/' || strings.ContainsRune(got, ' ') {
				t.Fatalf("invalid path for length %d: %q", n, got)
			}
		}
	})
	t.Run("empty location fails", func(t *testing.T) {
		_, err := BuildPath("")
		if !errors.Is(err, ErrEmptyLocation) {
			t.Errorf("expected error to be %s, got %s", ErrEmptyLocation, err)
		}
	})
	t.Run("location exceeding the maximum length fails", func(t *testing.T) {
		_, err := BuildPath(strings.Repeat("a", MaxLocationLen+1))
		if !errors.Is(err, ErrLocationTooLong) {
			t.Errorf("expected error to be %s, got %s", ErrLocationTooLong, err)
		}
	})
	t.Run("length is counted in bytes", func(t *testing.T) {
		// 129 two-byte runes are 258 bytes
		_, err := BuildPath(strings.Repeat("ü", 129))
		if !errors.Is(err, ErrLocationTooLong) {
			t.Errorf("expected error to be %s, got %s", ErrLocationTooLong, err)
		}
	})
	t.Run("custom limit is honored", func(t *testing.T) {
		if _, err := buildPath("abcd", 3); !errors.Is(err, ErrLocationTooLong) {
			t.Errorf("expected error to be %s, got %s", ErrLocationTooLong, err)
		}
		if _, err := buildPath("abc", 3); err != nil {
			t.Errorf("expected location at the limit to succeed, got: %s", err)
		}
	})
}
