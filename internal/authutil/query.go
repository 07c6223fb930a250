package authutil

import (
	"net/url"
	"strings"
)

// ParseQuery parses a query string such as "state=abc&code=4%2F0A" into a
// flat map. A leading '?' is ignored, the last value of a repeated key wins
// and pairs that fail to decode are skipped.
func ParseQuery(s string) map[string]string {
	result := make(map[string]string)
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	if s == "" {
		return result
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil || k == "" {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		result[k] = v
	}
	return result
}
