package squid

import (
	"fmt"
	"strings"
)

// LookupKey derives the store key for a request.
//
// CONNECT requests carry host:port, so the key is everything before the
// first colon. Other requests carry scheme://host/path and the key is the
// second non-empty slash separated segment, which is the host. When a URL
// has fewer than two segments it is used as is.
func LookupKey(rawURL, method string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidLine)
	}

	var key string
	if truncate(method, MaxMethodLen) == MethodConnect {
		key, _, _ = strings.Cut(rawURL, ":")
	} else {
		key = secondSegment(rawURL)
	}

	if key == "" {
		return "", fmt.Errorf("%w: no key in %q", ErrInvalidLine, rawURL)
	}
	return truncate(key, MaxKeyLen), nil
}

// Key is LookupKey applied to a parsed line.
func (r *RequestLine) Key() (string, error) {
	return LookupKey(r.URL, r.Method)
}

// secondSegment skips empty segments, so "http://host/a" yields "host".
func secondSegment(rawURL string) string {
	seen := 0
	for _, seg := range strings.Split(rawURL, "/") {
		if seg == "" {
			continue
		}
		seen++
		if seen == 2 {
			return seg
		}
	}
	return rawURL
}
