package setup

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/boatpub/internal/core/config"
)

// ParseSetValues parses --set flag values of the form "key=value".
func ParseSetValues(sets []string) (map[string]string, error) {
	result := make(map[string]string, len(sets))

	for _, s := range sets {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --set format %q: expected key=value", s)
		}

		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("invalid --set format %q: empty key", s)
		}
		result[key] = strings.TrimSpace(parts[1])
	}

	return result, nil
}

type setter func(cfg *config.Config, value string) error

func stringSetter(field func(*config.Config) *string) setter {
	return func(cfg *config.Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func intSetter(field func(*config.Config) *int) setter {
	return func(cfg *config.Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		*field(cfg) = n
		return nil
	}
}

func boolSetter(field func(*config.Config) *bool) setter {
	return func(cfg *config.Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", value)
		}
		*field(cfg) = b
		return nil
	}
}

func durationSetter(field func(*config.Config) *time.Duration) setter {
	return func(cfg *config.Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("expected a duration such as 500ms, got %q", value)
		}
		*field(cfg) = d
		return nil
	}
}

// setters maps the YAML key path of every settable option.
var setters = map[string]setter{
	"broker.host":                     stringSetter(func(c *config.Config) *string { return &c.Broker.Host }),
	"broker.port":                     intSetter(func(c *config.Config) *int { return &c.Broker.Port }),
	"broker.client_id":                stringSetter(func(c *config.Config) *string { return &c.Broker.ClientID }),
	"broker.username":                 stringSetter(func(c *config.Config) *string { return &c.Broker.Username }),
	"broker.password_file":            stringSetter(func(c *config.Config) *string { return &c.Broker.PasswordFile }),
	"broker.connect_timeout":          durationSetter(func(c *config.Config) *time.Duration { return &c.Broker.ConnectTimeout }),
	"broker.keep_alive":               durationSetter(func(c *config.Config) *time.Duration { return &c.Broker.KeepAlive }),
	"broker.tls.enabled":              boolSetter(func(c *config.Config) *bool { return &c.Broker.TLS.Enabled }),
	"broker.tls.ca_file":              stringSetter(func(c *config.Config) *string { return &c.Broker.TLS.CAFile }),
	"broker.tls.cert_file":            stringSetter(func(c *config.Config) *string { return &c.Broker.TLS.CertFile }),
	"broker.tls.key_file":             stringSetter(func(c *config.Config) *string { return &c.Broker.TLS.KeyFile }),
	"broker.tls.min_version":          stringSetter(func(c *config.Config) *string { return &c.Broker.TLS.MinVersion }),
	"broker.tls.insecure_skip_verify": boolSetter(func(c *config.Config) *bool { return &c.Broker.TLS.InsecureSkipVerify }),
	"publish.topic":                   stringSetter(func(c *config.Config) *string { return &c.Publish.Topic }),
	"publish.count":                   intSetter(func(c *config.Config) *int { return &c.Publish.Count }),
	"publish.interval":                durationSetter(func(c *config.Config) *time.Duration { return &c.Publish.Interval }),
	"publish.qos":                     intSetter(func(c *config.Config) *int { return &c.Publish.QoS }),
	"publish.retained":                boolSetter(func(c *config.Config) *bool { return &c.Publish.Retained }),
	"publish.ack_timeout":             durationSetter(func(c *config.Config) *time.Duration { return &c.Publish.AckTimeout }),
	"metrics.addr":                    stringSetter(func(c *config.Config) *string { return &c.Metrics.Addr }),
	"history.max_entries":             intSetter(func(c *config.Config) *int { return &c.History.MaxEntries }),
}

// SettableKeys returns every key accepted by ApplySet, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplySet writes values into cfg. Unknown keys and unparsable values are
// reported per key. broker.password is not settable; use
// broker.password_file instead.
func ApplySet(cfg *config.Config, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs criterio.FieldErrorsBuilder
	for _, key := range keys {
		set, ok := setters[key]
		if !ok {
			errs = errs.Append(key, errors.New("unknown key"))
			continue
		}
		if err := set(cfg, values[key]); err != nil {
			errs = errs.Append(key, err)
		}
	}
	return errs.ToError()
}
