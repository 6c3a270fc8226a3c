package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper resets viper global state and registers the defaults the
// command registers on start.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetDefaults()
}

// writeConfigFile writes YAML content to a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// loadConfigFile merges a YAML config file into viper.
func loadConfigFile(t *testing.T, path string) {
	t.Helper()
	viper.SetConfigFile(path)
	require.NoError(t, viper.MergeInConfig())
}

const minimalYAML = `
redirect_url: "http://127.0.0.1/blocked.html"
riak_bucket: blacklist
riak_host: 10.0.0.1
`

func TestDefaultsWithRequiredKeys(t *testing.T) {
	resetViper(t)
	loadConfigFile(t, writeConfigFile(t, minimalYAML))

	cfg, err := BuildConfigFromViper()
	require.NoError(t, err)

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"RedirectURL", cfg.RedirectURL, "http://127.0.0.1/blocked.html"},
		{"RiakBucket", cfg.RiakBucket, "blacklist"},
		{"RiakHost", cfg.RiakHost, "10.0.0.1"},
		{"RiakPort", cfg.RiakPort, 8098},
		{"LogLevel", cfg.LogLevel, "info"},
		{"ConnectTimeout", cfg.Lookup.ConnectTimeout, 2 * time.Second},
		{"Timeout", cfg.Lookup.Timeout, 2 * time.Second},
		{"UserAgent", cfg.Lookup.UserAgent, "SquriakRedirector"},
		{"BreakerFailures", cfg.Lookup.BreakerFailures, uint32(5)},
		{"BreakerTimeout", cfg.Lookup.BreakerTimeout, 30 * time.Second},
		{"APIServer", cfg.APIServer, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigFromFile(t *testing.T) {
	resetViper(t)

	yaml := `
redirect_url: "http://block.example.net/denied"
riak_bucket: ads
riak_host: 192.168.1.20
riak_port: 18098
log-level: DEBUG
stats-file: /tmp/sqriak.stats
api-server: 127.0.0.1:9099
api-server-secret: s3cret
lookup:
  connect-timeout: 500ms
  timeout: 1s
  user-agent: test-agent
  breaker-failures: 0
`
	loadConfigFile(t, writeConfigFile(t, yaml))

	cfg, err := BuildConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, "http://block.example.net/denied", cfg.RedirectURL)
	assert.Equal(t, "ads", cfg.RiakBucket)
	assert.Equal(t, "192.168.1.20", cfg.RiakHost)
	assert.Equal(t, 18098, cfg.RiakPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/sqriak.stats", cfg.StatsFile)
	assert.Equal(t, "127.0.0.1:9099", cfg.APIServer)
	assert.Equal(t, "s3cret", cfg.APIServerSecret)
	assert.Equal(t, 500*time.Millisecond, cfg.Lookup.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, "test-agent", cfg.Lookup.UserAgent)
	assert.Equal(t, uint32(0), cfg.Lookup.BreakerFailures)
	assert.Equal(t, "192.168.1.20:18098", cfg.Endpoint())
}

func TestTrimsWhitespace(t *testing.T) {
	resetViper(t)
	viper.Set("redirect_url", "  http://127.0.0.1/blocked  ")
	viper.Set("riak_bucket", " ads ")
	viper.Set("riak_host", "10.0.0.1")

	cfg, err := BuildConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1/blocked", cfg.RedirectURL)
	assert.Equal(t, "ads", cfg.RiakBucket)
}

func TestEnvVarOverridesFile(t *testing.T) {
	resetViper(t)
	viper.SetEnvPrefix("SQRIAK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	t.Setenv("SQRIAK_RIAK_PORT", "9000")

	loadConfigFile(t, writeConfigFile(t, minimalYAML))

	cfg, err := BuildConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.RiakPort)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"missing redirect_url", map[string]any{"redirect_url": ""}},
		{"missing riak_bucket", map[string]any{"riak_bucket": ""}},
		{"missing riak_host", map[string]any{"riak_host": ""}},
		{"hostname as riak_host", map[string]any{"riak_host": "riak.local"}},
		{"ipv6 riak_host", map[string]any{"riak_host": "::1"}},
		{"short riak_host", map[string]any{"riak_host": "10.0.1"}},
		{"octet overflow", map[string]any{"riak_host": "10.0.0.256"}},
		{"mapped ipv6 riak_host", map[string]any{"riak_host": "::ffff:10.0.0.1"}},
		{"leading zero octet", map[string]any{"riak_host": "010.0.0.1"}},
		{"zoned riak_host", map[string]any{"riak_host": "10.0.0.1%eth0"}},
		{"port zero", map[string]any{"riak_port": 0}},
		{"port too large", map[string]any{"riak_port": 70000}},
		{"bucket too long", map[string]any{"riak_bucket": strings.Repeat("b", 64)}},
		{"redirect too long", map[string]any{"redirect_url": "http://x/" + strings.Repeat("a", 250)}},
		{"redirect with newline", map[string]any{"redirect_url": "http://x/\nhttp://y/"}},
		{"bad log level", map[string]any{"log-level": "verbose"}},
		{"bad api server", map[string]any{"api-server": "not an address"}},
		{"zero timeout", map[string]any{"lookup.timeout": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			loadConfigFile(t, writeConfigFile(t, minimalYAML))
			for k, v := range tt.set {
				viper.Set(k, v)
			}
			_, err := BuildConfigFromViper()
			assert.Error(t, err)
		})
	}
}

func TestIsDottedQuad(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"10.0.0.1", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},
		{"::ffff:10.0.0.1", false},
		{"::ffff:a00:1", false},
		{"010.0.0.1", false},
		{"10.0.0", false},
		{" 10.0.0.1", false},
		{"riak.local", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDottedQuad(tt.in), "IsDottedQuad(%q)", tt.in)
	}
}

func TestValidateMappedHostDirectly(t *testing.T) {
	cfg := &Config{
		RedirectURL: "http://127.0.0.1/blocked.html",
		RiakBucket:  "blacklist",
		RiakHost:    "::ffff:10.0.0.1",
		RiakPort:    DefaultRiakPort,
		LogLevel:    DefaultLogLevel,
		Lookup:      LookupConfig{ConnectTimeout: DefaultConnectTimeout, Timeout: DefaultLookupTimeout},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RiakHost")

	cfg.RiakHost = "10.0.0.1"
	assert.NoError(t, cfg.Validate())
}

func TestValidationBoundaries(t *testing.T) {
	resetViper(t)
	loadConfigFile(t, writeConfigFile(t, minimalYAML))
	viper.Set("riak_bucket", strings.Repeat("b", 63))
	viper.Set("redirect_url", strings.Repeat("u", 255))
	viper.Set("riak_port", 65535)

	_, err := BuildConfigFromViper()
	assert.NoError(t, err)
}

func TestGenerateTemplateConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	tmpl, err := GenerateTemplateConfig(true)
	require.NoError(t, err)

	resetViper(t)
	loadConfigFile(t, filepath.Join(dir, TemplateFile))
	cfg, err := BuildConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, tmpl, *cfg)
}

func TestLogValue(t *testing.T) {
	cfg := &Config{RiakHost: "10.0.0.1", RiakPort: 8098, APIServerSecret: "hidden"}
	v := cfg.LogValue()
	assert.NotContains(t, v.String(), "hidden")
	assert.Contains(t, v.String(), "10.0.0.1:8098")
}
