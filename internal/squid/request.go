// Package squid implements the url_rewrite helper line format used by Squid:
// one request per line, five whitespace separated fields.
//
//	URL client-ip/fqdn user method kv-pairs
package squid

import (
	"errors"
	"log/slog"
	"strings"
)

// Field limits of the helper protocol, in bytes. Longer values are cut,
// never rejected.
const (
	MaxURLLen        = 255
	MaxClientAddrLen = 271
	MaxClientIPLen   = 15
	MaxFQDNLen       = 254
	MaxUserLen       = 15
	MaxMethodLen     = 7
	MaxKVPairsLen    = 63
	MaxKeyLen        = 255
)

const (
	MethodConnect = "CONNECT"
	fieldCount    = 5
)

// ErrInvalidLine marks a line that must be answered with an empty reply
// without consulting the store.
var ErrInvalidLine = errors.New("invalid request line")

type RequestLine struct {
	URL      string
	ClientIP string
	FQDN     string
	User     string
	Method   string
	KVPairs  string
}

// ParseLine splits one helper input line. ok is false unless exactly five
// fields are present.
func ParseLine(line string) (req *RequestLine, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	fields := strings.FieldsFunc(line, isSpace)
	if len(fields) != fieldCount {
		return nil, false
	}

	req = &RequestLine{
		URL:     truncate(fields[0], MaxURLLen),
		User:    truncate(fields[2], MaxUserLen),
		Method:  truncate(fields[3], MaxMethodLen),
		KVPairs: truncate(fields[4], MaxKVPairsLen),
	}
	req.ClientIP, req.FQDN = SplitClientAddr(truncate(fields[1], MaxClientAddrLen))
	return req, true
}

// SplitClientAddr splits the "ip/fqdn" field. Without a slash the whole
// field is the IP.
func SplitClientAddr(field string) (ip, fqdn string) {
	ip, fqdn, _ = strings.Cut(field, "/")
	return truncate(ip, MaxClientIPLen), truncate(fqdn, MaxFQDNLen)
}

func (r *RequestLine) IsConnect() bool {
	return r.Method == MethodConnect
}

func (r *RequestLine) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("client", r.ClientIP),
		slog.String("fqdn", r.FQDN),
		slog.String("user", r.User),
		slog.String("method", r.Method),
	)
}

// isSpace matches the C locale isspace set; multi-byte spaces are
// part of a field.
func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// truncate cuts s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
