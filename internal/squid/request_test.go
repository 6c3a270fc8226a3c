package squid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *RequestLine
	}{
		{
			name: "plain GET",
			line: "http://ads.example.com/track 10.0.0.5/client.local user1 GET -\n",
			want: &RequestLine{
				URL: "http://ads.example.com/track", ClientIP: "10.0.0.5", FQDN: "client.local",
				User: "user1", Method: "GET", KVPairs: "-",
			},
		},
		{
			name: "CRLF and tabs",
			line: "safe.example.com:443\t10.0.0.5/-   -  CONNECT  myip=10.0.0.1\r\n",
			want: &RequestLine{
				URL: "safe.example.com:443", ClientIP: "10.0.0.5", FQDN: "-",
				User: "-", Method: "CONNECT", KVPairs: "myip=10.0.0.1",
			},
		},
		{
			name: "leading whitespace",
			line: "   http://a/b 1.2.3.4/ - POST x",
			want: &RequestLine{URL: "http://a/b", ClientIP: "1.2.3.4", User: "-", Method: "POST", KVPairs: "x"},
		},
		{
			name: "client without slash",
			line: "http://a/b 1.2.3.4 - GET x",
			want: &RequestLine{URL: "http://a/b", ClientIP: "1.2.3.4", User: "-", Method: "GET", KVPairs: "x"},
		},
		{
			name: "client without ip",
			line: "http://a/b /host.local - GET x",
			want: &RequestLine{URL: "http://a/b", FQDN: "host.local", User: "-", Method: "GET", KVPairs: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_WrongFieldCount(t *testing.T) {
	lines := []string{
		"",
		"\n",
		"\r\n",
		"   \t  ",
		"badline",
		"http://a/b 10.0.0.1/- user GET",
		"http://a/b 10.0.0.1/- user GET - extra",
		"a b c d e f g h",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			req, ok := ParseLine(line)
			assert.False(t, ok)
			assert.Nil(t, req)
		})
	}
}

func TestParseLine_Truncation(t *testing.T) {
	longURL := "http://" + strings.Repeat("u", 400)
	longIP := strings.Repeat("1", 20)
	longFQDN := strings.Repeat("f", 300)
	line := strings.Join([]string{
		longURL,
		longIP + "/" + longFQDN,
		strings.Repeat("n", 30),
		"CONNECTION",
		strings.Repeat("k", 100),
	}, " ")

	req, ok := ParseLine(line)
	require.True(t, ok)
	assert.Len(t, req.URL, MaxURLLen)
	assert.Equal(t, longURL[:MaxURLLen], req.URL)
	assert.Len(t, req.ClientIP, MaxClientIPLen)
	// the address field is cut at 271 bytes before it is split
	assert.Len(t, req.FQDN, MaxClientAddrLen-len(longIP)-1)
	assert.Len(t, req.User, MaxUserLen)
	assert.Equal(t, "CONNECT", req.Method)
	assert.True(t, req.IsConnect())
	assert.Len(t, req.KVPairs, MaxKVPairsLen)
}

func TestSplitClientAddr(t *testing.T) {
	tests := []struct {
		field, ip, fqdn string
	}{
		{"10.0.0.5/client.local", "10.0.0.5", "client.local"},
		{"10.0.0.5/", "10.0.0.5", ""},
		{"10.0.0.5", "10.0.0.5", ""},
		{"/client.local", "", "client.local"},
		{"", "", ""},
		{"10.0.0.5/a/b", "10.0.0.5", "a/b"},
		{strings.Repeat("9", 16) + "/" + strings.Repeat("h", 260), strings.Repeat("9", 15), strings.Repeat("h", 254)},
	}
	for _, tt := range tests {
		ip, fqdn := SplitClientAddr(tt.field)
		assert.Equal(t, tt.ip, ip, tt.field)
		assert.Equal(t, tt.fqdn, fqdn, tt.field)
	}
}
