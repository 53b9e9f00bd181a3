package cors

import (
	"fmt"
	"math"
	"net/http"
	"regexp"
)

// Override keys accepted by FromMap
const (
	KeyOrigin               = "origin"
	KeyMethods              = "methods"
	KeyAllowedHeaders       = "allowedHeaders"
	KeyHeaders              = "headers"
	KeyExposedHeaders       = "exposedHeaders"
	KeyCredentials          = "credentials"
	KeyMaxAge               = "maxAge"
	KeyPreflightContinue    = "preflightContinue"
	KeyOptionsSuccessStatus = "optionsSuccessStatus"
)

// Config is the effective CORS configuration of a policy.
// Single string values for the list fields are kept as one-element lists
// and are therefore emitted verbatim.
type Config struct {
	Origin               Origin
	Methods              []string
	AllowedHeaders       []string
	ExposedHeaders       []string
	Credentials          bool
	MaxAge               *int
	PreflightContinue    bool
	OptionsSuccessStatus int
}

// DefaultConfig returns the configuration used for every key a caller leaves out
func DefaultConfig() Config {
	return Config{
		Origin:               Wildcard,
		Methods:              []string{"GET,HEAD,PUT,PATCH,POST,DELETE"},
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusNoContent,
	}
}

// ConfigError reports an override whose value has an unsupported shape
type ConfigError struct {
	Key   string
	Value any
	Want  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cors: invalid value %#v for %q: want %s", e.Value, e.Key, e.Want)
}

// FromMap merges overrides onto DefaultConfig. Keys present in overrides win,
// unknown keys are ignored. When both allowedHeaders and its alias headers
// are given, allowedHeaders wins.
func FromMap(overrides map[string]any) (Config, error) {
	return Merge(DefaultConfig(), overrides)
}

// Merge applies overrides on top of base and returns the result; base is not modified
func Merge(base Config, overrides map[string]any) (Config, error) {
	cfg := base.clone()

	for key, value := range overrides {
		var err error
		switch key {
		case KeyOrigin:
			cfg.Origin, err = parseOrigin(key, value)
		case KeyMethods:
			cfg.Methods, err = parseList(key, value)
		case KeyAllowedHeaders:
			cfg.AllowedHeaders, err = parseList(key, value)
		case KeyHeaders:
			if _, ok := overrides[KeyAllowedHeaders]; ok {
				continue
			}
			cfg.AllowedHeaders, err = parseList(key, value)
		case KeyExposedHeaders:
			cfg.ExposedHeaders, err = parseList(key, value)
		case KeyCredentials:
			cfg.Credentials, err = parseBool(key, value)
		case KeyPreflightContinue:
			cfg.PreflightContinue, err = parseBool(key, value)
		case KeyMaxAge:
			if value == nil {
				cfg.MaxAge = nil
				continue
			}
			var n int
			n, err = parseInt(key, value)
			if err == nil {
				cfg.MaxAge = &n
			}
		case KeyOptionsSuccessStatus:
			var n int
			n, err = parseInt(key, value)
			if err == nil && (n < 100 || n > 599) {
				err = &ConfigError{Key: key, Value: value, Want: "an HTTP status code in [100, 599]"}
			}
			cfg.OptionsSuccessStatus = n
		}
		if err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// MaxAgeSeconds is a helper for building a Config with a Max-Age
func MaxAgeSeconds(n int) *int {
	return &n
}

func (c Config) clone() Config {
	out := c
	out.Methods = append([]string(nil), c.Methods...)
	out.AllowedHeaders = append([]string(nil), c.AllowedHeaders...)
	out.ExposedHeaders = append([]string(nil), c.ExposedHeaders...)
	if c.MaxAge != nil {
		n := *c.MaxAge
		out.MaxAge = &n
	}
	return out
}

func parseOrigin(key string, value any) (Origin, error) {
	switch v := value.(type) {
	case Origin:
		return v, nil
	case string:
		if v == "*" {
			return Wildcard, nil
		}
		return Literal(v), nil
	case *regexp.Regexp:
		return PatternOf(v), nil
	case []string:
		out := make(AnyOf, 0, len(v))
		for _, s := range v {
			o, _ := parseOrigin(key, s)
			out = append(out, o)
		}
		return out, nil
	case []any:
		out := make(AnyOf, 0, len(v))
		for _, item := range v {
			o, err := parseOrigin(key, item)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		return out, nil
	case map[string]any:
		expr, ok := v["pattern"].(string)
		if !ok || len(v) != 1 {
			return nil, &ConfigError{Key: key, Value: value, Want: `a map with a single "pattern" string`}
		}
		return NewPattern(expr), nil
	}
	return nil, &ConfigError{Key: key, Value: value, Want: "a string, a list, or a pattern"}
}

func parseList(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ConfigError{Key: key, Value: value, Want: "a list of strings"}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &ConfigError{Key: key, Value: value, Want: "a string or a list of strings"}
}

func parseBool(key string, value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, &ConfigError{Key: key, Value: value, Want: "a boolean"}
	}
	return b, nil
}

func parseInt(key string, value any) (int, error) {
	overflow := &ConfigError{Key: key, Value: value, Want: "an integer that fits in int"}
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, overflow
		}
		return int(v), nil
	case uint:
		if v > math.MaxInt {
			return 0, overflow
		}
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		if uint64(v) > math.MaxInt {
			return 0, overflow
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt {
			return 0, overflow
		}
		return int(v), nil
	case float32:
		return parseWholeFloat(float64(v), overflow)
	case float64:
		return parseWholeFloat(v, overflow)
	}
	return 0, &ConfigError{Key: key, Value: value, Want: "an integer"}
}

// parseWholeFloat accepts numbers decoded by encoding/json as float64
func parseWholeFloat(v float64, overflow *ConfigError) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, &ConfigError{Key: overflow.Key, Value: overflow.Value, Want: "an integer"}
	}
	// 2^63 is the first float64 above math.MaxInt on 64-bit platforms
	if v >= -float64(math.MinInt) || v < float64(math.MinInt) {
		return 0, overflow
	}
	return int(v), nil
}
