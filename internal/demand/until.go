package demand

import (
	"fmt"
	"strings"
	"time"
)

// ParseUntil parses the wire forms of a request deadline accepted by all
// request sources: an RFC3339 timestamp, a duration ("90m"), the literal
// "boost", or the literal "now". "now" means: purge this source's request
// immediately, reported through purge. An empty string means the request has
// no deadline.
func ParseUntil(s string, now time.Time) (until time.Time, boost bool, purge bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return time.Time{}, false, false, nil
	case "boost":
		return time.Time{}, true, false, nil
	case "now":
		return time.Time{}, false, true, nil
	}
	if d, parseErr := time.ParseDuration(s); parseErr == nil {
		return now.Add(d), false, false, nil
	}
	if t, parseErr := time.Parse(time.RFC3339, s); parseErr == nil {
		return t, false, false, nil
	}
	return time.Time{}, false, false, fmt.Errorf("invalid until: %q", s)
}
