package intake

import (
	"fmt"
	"net/url"
	"strings"
)

// parseForm decodes an application/x-www-form-urlencoded body with the
// strictness the submit endpoint requires: every pair must contain
// exactly one '='. A pair with no '=', a second raw '=', or an empty
// pair (as in "a=1&&b=2") is a parse fault. url.ParseQuery is
// deliberately not used here because it accepts all of those shapes,
// which must map to a 400. A literal '=' inside a value still works
// percent-encoded (%3D).
func parseForm(body string) (map[string]string, error) {
	fields := make(map[string]string)

	for _, pair := range strings.Split(body, "&") {
		if strings.Count(pair, "=") != 1 {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("bad key %q: %w", key, err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", value, err)
		}
		fields[k] = v
	}
	return fields, nil
}
