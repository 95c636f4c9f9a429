// Package wordlist encodes and parses the human-transcribable rendezvous
// code: a relay-assigned channel-id followed by a handful of words drawn
// from a fixed, alternating even/odd column wordlist.
package wordlist

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator is the fixed character joining the channel-id and words.
const Separator = "-"

// MinWords is the minimum word count MakeCode will accept, per the
// "at least two words per code for adequate PAKE security" requirement.
const MinWords = 2

// ErrMalformedCode is returned when a code string does not match the
// "channel-id SEP word (SEP word)*" grammar.
var ErrMalformedCode = errors.New("wordlist: malformed code")

// ErrTooFewWords is returned by MakeCode when asked for fewer than
// MinWords words.
var ErrTooFewWords = errors.New("wordlist: too few words requested")

var canonicalCase = cases.Lower(language.Und)

// MakeCode prepends the decimal channel-id and separator to numWords
// randomly chosen words, alternating even/odd columns starting with
// evenWords. It returns ErrTooFewWords if numWords < MinWords.
func MakeCode(channelID int64, numWords int) (string, error) {
	if numWords < MinWords {
		return "", fmt.Errorf("%w: got %d, need at least %d", ErrTooFewWords, numWords, MinWords)
	}

	parts := make([]string, 0, numWords+1)
	parts = append(parts, strconv.FormatInt(channelID, 10))

	for i := 0; i < numWords; i++ {
		word, err := randomWord(columnFor(i))
		if err != nil {
			return "", fmt.Errorf("wordlist: choosing word %d: %w", i, err)
		}
		parts = append(parts, word)
	}

	return strings.Join(parts, Separator), nil
}

// ExtractChannelID parses the integer prefix of a code up to the first
// separator. Surrounding whitespace is stripped before parsing.
func ExtractChannelID(code string) (int64, error) {
	code = strings.TrimSpace(code)

	idx := strings.Index(code, Separator)
	if idx <= 0 {
		return 0, fmt.Errorf("%w: %q has no %q-separated channel-id", ErrMalformedCode, code, Separator)
	}

	// idx > 0 already rules out a "-"-led prefix, so code[:idx] can never
	// parse as negative here.
	id, err := strconv.ParseInt(code[:idx], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: channel-id %q is not numeric: %v", ErrMalformedCode, code[:idx], err)
	}

	return id, nil
}

// CompletionCandidates produces tab-completion candidates for the given
// partially-typed prefix. If prefix has no separator yet, candidates are
// the decimal channel-ids from knownChannelIDs that start with prefix
// (each followed by Separator to invite the next word). Otherwise the
// first segment is matched against knownChannelIDs, and candidates are
// full code prefixes formed by completing the final, partially-typed
// word from the appropriate even/odd column.
func CompletionCandidates(prefix string, knownChannelIDs []int64) []string {
	prefix = strings.TrimSpace(prefix)

	segments := strings.Split(prefix, Separator)
	if len(segments) == 1 {
		var out []string
		for _, id := range knownChannelIDs {
			idStr := strconv.FormatInt(id, 10)
			if strings.HasPrefix(idStr, segments[0]) {
				out = append(out, idStr+Separator)
			}
		}
		return out
	}

	idStr := segments[0]
	matched := false
	for _, id := range knownChannelIDs {
		if strconv.FormatInt(id, 10) == idStr {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	wordIndex := len(segments) - 2
	column := columnFor(wordIndex)
	partial := canonicalCase.String(segments[len(segments)-1])

	prefixSegments := segments[:len(segments)-1]
	var out []string
	for _, w := range column {
		if strings.HasPrefix(w, partial) {
			out = append(out, strings.Join(append(append([]string{}, prefixSegments...), w), Separator))
		}
	}
	return out
}

// columnFor returns the wordlist column for a zero-based word position:
// even positions (0, 2, 4, ...) draw from evenWords, odd positions from
// oddWords.
func columnFor(position int) []string {
	if position%2 == 0 {
		return evenWords
	}
	return oddWords
}

// randomWord picks a uniformly random, canonicalized word from column
// using crypto/rand.
func randomWord(column []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(column))))
	if err != nil {
		return "", err
	}
	return canonicalCase.String(column[n.Int64()]), nil
}
