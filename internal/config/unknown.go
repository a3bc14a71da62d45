package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// networkSection is the name of the [network] table.
const networkSection = "network"

// knownTopKeys are the valid top-level keys in the config file.
var knownTopKeys = map[string]bool{
	"client_id": true, "client_secret": true, "token_file": true, "scopes": true,
	"base_url": true, "redirect_host": true, "redirect_port": true,
	"auth_timeout": true, "log_level": true, networkSection: true,
}

// knownNetworkKeys are the valid keys inside [network].
var knownNetworkKeys = map[string]bool{
	"timeout": true, "user_agent": true,
}

var (
	knownTopKeysList     = sortedKeys(knownTopKeys)
	knownNetworkKeysList = sortedKeys(knownNetworkKeys)
)

// sortedKeys returns the keys of m sorted, so that suggestions with equal
// edit distance are deterministic.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		errs = append(errs, unknownKeyError(key))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes a single undecoded key.
func unknownKeyError(key toml.Key) error {
	if len(key) > 1 && key[0] == networkSection {
		field := strings.Join(key[1:], ".")
		if s := closestMatch(field, knownNetworkKeysList); s != "" {
			return fmt.Errorf("unknown key %q in [network]: did you mean %q?", field, s)
		}

		return fmt.Errorf("unknown key %q in [network]", field)
	}

	field := key.String()
	if s := closestMatch(field, knownTopKeysList); s != "" {
		return fmt.Errorf("unknown config key %q: did you mean %q?", field, s)
	}

	return fmt.Errorf("unknown config key %q", field)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings using a
// single-row buffer pair.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
