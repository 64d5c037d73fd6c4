package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "client.url"
	Message string // e.g., "unsupported scheme"
	Hint    string // e.g., "expected ws:// or wss://"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the entire config. It aggregates all errors and returns
// them, allowing the caller to print every issue at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateClient()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateClient() []error {
	var errs []error
	cc := c.Client

	if cc.URL == "" {
		errs = append(errs, ValidationError{
			Path:    "client.url",
			Message: "must not be empty",
			Hint:    "e.g., ws://localhost:28080/cable",
		})
	} else {
		u, err := url.Parse(cc.URL)
		if err != nil {
			errs = append(errs, ValidationError{
				Path:    "client.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, ValidationError{
				Path:    "client.url",
				Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
				Hint:    "expected ws:// or wss://",
			})
		}
	}

	if cc.Handle == "" {
		errs = append(errs, ValidationError{
			Path:    "client.handle",
			Message: "must not be empty",
		})
	}
	if cc.Room == "" {
		errs = append(errs, ValidationError{
			Path:    "client.room",
			Message: "must not be empty",
		})
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error
	sc := c.Server

	if sc.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Path:    "server.listen_addr",
			Message: "must not be empty",
			Hint:    "e.g., :28080",
		})
	} else {
		_, portStr, err := net.SplitHostPort(sc.ListenAddr)
		if err != nil {
			errs = append(errs, ValidationError{
				Path:    "server.listen_addr",
				Message: fmt.Sprintf("invalid address: %v", err),
				Hint:    "expected host:port",
			})
		} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
			errs = append(errs, ValidationError{
				Path:    "server.listen_addr",
				Message: fmt.Sprintf("invalid port %q", portStr),
				Hint:    "port must be between 1 and 65535",
			})
		}
	}

	if sc.PingInterval < 0 {
		errs = append(errs, ValidationError{
			Path:    "server.ping_interval",
			Message: "must not be negative",
		})
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	lc := c.Logging

	switch lc.Level {
	case "", "info", "error", "all":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("unknown level %q", lc.Level),
			Hint:    "expected info, error, or all",
		})
	}

	return errs
}
