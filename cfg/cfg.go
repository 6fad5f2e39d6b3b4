package cfg

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Instance        string
	Upstream_url    string
	Poll_interval   Duration
	Request_timeout Duration
	Retry_max       int
	Backoff_min     Duration
	Backoff_max     Duration
	Http_addr       string
	Log_level       string
	Pid_file        string
}

func NewConfig() Config {
	return Config{
		Instance:        "default",
		Poll_interval:   Duration{10 * time.Second},
		Request_timeout: Duration{5 * time.Second},
		Retry_max:       3,
		Backoff_min:     Duration{100 * time.Millisecond},
		Backoff_max:     Duration{30 * time.Second},
		Log_level:       "info",
	}
}

func NewFromFile(path string) (Config, toml.MetaData, error) {
	config := NewConfig()
	var meta toml.MetaData
	data, err := os.ReadFile(path)
	if err != nil {
		return config, meta, fmt.Errorf("couldn't read config file %q: %s", path, err.Error())
	}

	dataStr := os.Expand(string(data), expandVars)
	meta, err = toml.Decode(dataStr, &config)
	if err != nil {
		return config, meta, fmt.Errorf("invalid config file %q: %s", path, err.Error())
	}
	return config, meta, nil
}

func (c Config) Validate() error {
	if c.Upstream_url == "" {
		return fmt.Errorf("upstream_url cannot be empty")
	}
	u, err := url.Parse(c.Upstream_url)
	if err != nil {
		return fmt.Errorf("invalid upstream_url %q: %s", c.Upstream_url, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream_url %q must be http or https", c.Upstream_url)
	}
	if c.Poll_interval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Request_timeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Retry_max < 0 {
		return fmt.Errorf("retry_max cannot be negative")
	}
	if c.Backoff_min.Duration <= 0 || c.Backoff_max.Duration < c.Backoff_min.Duration {
		return fmt.Errorf("backoff_min must be positive and no larger than backoff_max")
	}
	return nil
}

func expandVars(in string) (out string) {
	switch in {
	case "HOST":
		hostname, _ := os.Hostname()
		// in case hostname is an fqdn or has dots, only take first part
		parts := strings.SplitN(hostname, ".", 2)
		return parts[0]
	case "UPSTREAM_URL":
		return os.Getenv("UPSTREAM_URL")
	default:
		return "$" + in
	}
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText makes durations render as "3s" rather than raw
// nanoseconds, in TOML and in the JSON the admin API serves.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
