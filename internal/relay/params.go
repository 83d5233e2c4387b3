package relay

import (
	"errors"
	"net/url"
	"strconv"
)

// ErrBadParameter is returned when the "n" query parameter is present but
// is not a positive integer (spec §4.2, BadParameter in the §7 taxonomy).
var ErrBadParameter = errors.New("n must be a positive integer")

// ParseReceiverCount extracts and validates "n" from a request's query
// string. A key that is absent entirely defaults to defaultN; a key that
// is present (including present-but-empty, e.g. "?n=") is validated and
// rejected unless it parses as an integer >= 1 (spec §4.2).
func ParseReceiverCount(query url.Values, defaultN int) (int, error) {
	if !query.Has("n") {
		return defaultN, nil
	}

	n, err := strconv.Atoi(query.Get("n"))
	if err != nil || n < 1 {
		return 0, ErrBadParameter
	}
	return n, nil
}
