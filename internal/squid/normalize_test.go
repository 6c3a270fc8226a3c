package squid

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		method string
		want   string
	}{
		{"http host", "http://ads.example.com/track", "GET", "ads.example.com"},
		{"https host no path", "https://ads.example.com", "GET", "ads.example.com"},
		{"host with port kept", "http://ads.example.com:8080/x", "POST", "ads.example.com:8080"},
		{"double slashes skipped", "http:////ads.example.com//a", "GET", "ads.example.com"},
		{"relative path", "/a/b", "GET", "b"},
		{"single segment used as is", "ads.example.com", "GET", "ads.example.com"},
		{"single segment with slashes", "/ads.example.com/", "GET", "/ads.example.com/"},
		{"connect host port", "safe.example.com:443", "CONNECT", "safe.example.com"},
		{"connect without port", "safe.example.com", "CONNECT", "safe.example.com"},
		{"connect with scheme", "https://safe.example.com:443", "CONNECT", "https"},
		{"connect method truncated", "safe.example.com:443", "CONNECTX", "safe.example.com"},
		{"lowercase connect is not connect", "http://a.example/b", "connect", "a.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupKey(tt.url, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupKey_Invalid(t *testing.T) {
	tests := []struct {
		url, method string
	}{
		{"", "GET"},
		{"", "CONNECT"},
		{":443", "CONNECT"},
	}
	for _, tt := range tests {
		_, err := LookupKey(tt.url, tt.method)
		assert.True(t, errors.Is(err, ErrInvalidLine), "%q %q: %v", tt.url, tt.method, err)
	}
}

func TestLookupKey_Bounded(t *testing.T) {
	host := strings.Repeat("h", 400)

	key, err := LookupKey(host+":443", MethodConnect)
	require.NoError(t, err)
	assert.Len(t, key, MaxKeyLen)

	key, err = LookupKey("http://"+host+"/x", "GET")
	require.NoError(t, err)
	assert.Len(t, key, MaxKeyLen)
}

// Every CONNECT key is the prefix before the first colon.
func TestLookupKey_ConnectProperty(t *testing.T) {
	urls := []string{"a:1", "a.b.c:443", "x", "a:b:c", "host:", "h.example:0/x"}
	for _, u := range urls {
		key, err := LookupKey(u, MethodConnect)
		require.NoError(t, err, u)
		want := u
		if i := strings.IndexByte(u, ':'); i >= 0 {
			want = u[:i]
		}
		assert.Equal(t, want, key, u)
	}
}

func TestRequestLine_Key(t *testing.T) {
	req, ok := ParseLine("http://ads.example.com/track 10.0.0.5/client.local user1 GET -")
	require.True(t, ok)
	key, err := req.Key()
	require.NoError(t, err)
	assert.Equal(t, "ads.example.com", key)

	req, ok = ParseLine("https://safe.example.com:443 10.0.0.5/client.local user1 CONNECT -")
	require.True(t, ok)
	key, err = req.Key()
	require.NoError(t, err)
	assert.Equal(t, "https", key)
}
