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

// knownKeys are the valid fully qualified keys in the config file.
var knownKeys = map[string]bool{
	"oauth.token_url": true, "oauth.client_id": true,
	"oauth.scope": true, "oauth.token_cache_path": true,
	"sharepoint.base_url": true, "sharepoint.site_id": true,
	"sharepoint.file_path": true, "sharepoint.sender": true,
	"sharepoint.notify_on_failure": true, "sharepoint.notify_recipients": true,
	"sync.backup_dir": true, "sync.backup_prefix": true, "sync.target_sheet": true,
	"sync.writes_per_second": true, "sync.rewrite_max_attempts": true,
	"sync.rewrite_retry_delay": true, "sync.history_db_path": true,
	"sync.history_disabled": true,
	"logging.log_level":     true,
	"logging.log_format":    true,
}

// knownKeysList is the sorted slice form of knownKeys for Levenshtein
// matching. Sorted for deterministic suggestions when two candidates have
// the same edit distance.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with a "did you mean?" suggestion for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		keyStr := key.String()
		if knownKeys[keyStr] {
			continue
		}

		if suggestion := closestKnownKey(keyStr); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", keyStr, suggestion))
			continue
		}

		errs = append(errs, fmt.Errorf("unknown config key %q", keyStr))
	}

	return errors.Join(errs...)
}

// closestKnownKey returns the known key nearest to s by edit distance, or
// "" when nothing is close enough to be a plausible typo.
func closestKnownKey(s string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, key := range knownKeysList {
		if d := levenshtein(strings.ToLower(s), key); d < bestDist {
			best = key
			bestDist = d
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming form.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
