package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultRiakPort        = 8098
	DefaultConnectTimeout  = 2 * time.Second
	DefaultLookupTimeout   = 2 * time.Second
	DefaultUserAgent       = "SquriakRedirector"
	DefaultBreakerTimeout  = 30 * time.Second
	DefaultBreakerFailures = 5
	DefaultLogLevel        = "info"
)

// Config is one complete, immutable snapshot of the helper settings.
// A reload builds a new Config and swaps it in through a Holder; a Config
// that has been handed to a Holder must not be modified.
type Config struct {
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url" json:"redirect_url" validate:"required,max=255"`
	RiakBucket  string `mapstructure:"riak_bucket" yaml:"riak_bucket" json:"riak_bucket" validate:"required,max=63"`
	RiakHost    string `mapstructure:"riak_host" yaml:"riak_host" json:"riak_host" validate:"required,dotted_quad"`
	RiakPort    int    `mapstructure:"riak_port" yaml:"riak_port" json:"riak_port" validate:"min=1,max=65535"`

	LogLevel    string `mapstructure:"log-level" yaml:"log-level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFile     string `mapstructure:"log-file" yaml:"log-file,omitempty" json:"log_file"`
	Syslog      bool   `mapstructure:"syslog" yaml:"syslog" json:"syslog"`
	WatchConfig bool   `mapstructure:"watch-config" yaml:"watch-config" json:"watch_config"`
	StatsFile   string `mapstructure:"stats-file" yaml:"stats-file,omitempty" json:"stats_file"`

	APIServer       string `mapstructure:"api-server" yaml:"api-server,omitempty" json:"api_server" validate:"omitempty,hostname_port"`
	APIServerSecret string `mapstructure:"api-server-secret" yaml:"api-server-secret,omitempty" json:"-"`

	Lookup LookupConfig `mapstructure:"lookup" yaml:"lookup" json:"lookup"`
}

type LookupConfig struct {
	ConnectTimeout  time.Duration `mapstructure:"connect-timeout" yaml:"connect-timeout" json:"connect_timeout" validate:"gt=0"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout" validate:"gt=0"`
	UserAgent       string        `mapstructure:"user-agent" yaml:"user-agent" json:"user_agent"`
	BreakerFailures uint32        `mapstructure:"breaker-failures" yaml:"breaker-failures" json:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker-timeout" yaml:"breaker-timeout" json:"breaker_timeout" validate:"required_with=BreakerFailures"`
}

// SetDefaults registers the default values on the global viper instance.
func SetDefaults() {
	viper.SetDefault("riak_port", DefaultRiakPort)
	viper.SetDefault("log-level", DefaultLogLevel)
	viper.SetDefault("lookup.connect-timeout", DefaultConnectTimeout)
	viper.SetDefault("lookup.timeout", DefaultLookupTimeout)
	viper.SetDefault("lookup.user-agent", DefaultUserAgent)
	viper.SetDefault("lookup.breaker-failures", DefaultBreakerFailures)
	viper.SetDefault("lookup.breaker-timeout", DefaultBreakerTimeout)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("dotted_quad", func(fl validator.FieldLevel) bool {
		return IsDottedQuad(fl.Field().String())
	})
	return v
}

// IsDottedQuad reports whether s is a plain a.b.c.d IPv4 address. Mapped
// IPv6 forms and leading-zero octets are rejected: neither can be written
// back into a host:port endpoint the dialer accepts as the same address.
func IsDottedQuad(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4() && addr.String() == s
}

// BuildConfigFromViper decodes and validates the current viper state.
func BuildConfigFromViper() (*Config, error) {
	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		trimSpaceHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := viper.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints plus the rules the line protocol
// depends on: the redirect target is written verbatim as one reply line.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed on '%s' (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value()))
		}
		return fmt.Errorf("validate: %w", err)
	}
	if strings.ContainsAny(c.RedirectURL, "\r\n") {
		return errors.New("invalid redirect_url: must not contain line breaks")
	}
	return nil
}

// Endpoint returns host:port of the Riak HTTP interface.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.RiakHost, c.RiakPort)
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Redirect URL", c.RedirectURL),
		slog.String("Riak Endpoint", c.Endpoint()),
		slog.String("Riak Bucket", c.RiakBucket),
		slog.String("Log Level", c.LogLevel),
		slog.Duration("Connect Timeout", c.Lookup.ConnectTimeout),
		slog.Duration("Lookup Timeout", c.Lookup.Timeout),
		slog.Any("Breaker Failures", c.Lookup.BreakerFailures),
		slog.String("API Server", c.APIServer),
	)
}

func trimSpaceHook(f reflect.Kind, t reflect.Kind, data any) (any, error) {
	if f != reflect.String || t != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(data.(string)), nil
}
