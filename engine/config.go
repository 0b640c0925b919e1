package engine

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/netprobe/synscan/stream"
)

// Config holds the process-wide, configuration-time-only state spec §5
// calls out ("banner payload templates are process-wide and mutated only
// during configuration, before the receive thread starts") and spec §6's
// set_http_header/set_parameter setters. Bind a Config into
// engine.Collaborators.DefaultStreams once, before the receive loop starts.
type Config struct {
	HTTP *stream.HTTP
	SSL  *stream.SSL
	SMB  *stream.SMB

	sslClientHello []byte
	Heartbleed     bool
	Ticketbleed    bool
	POODLE         bool

	HelloMode string // "ssl", "http", or "smbv1" — selects the default stream.

	ConnectionTimeout time.Duration
	HelloTimeout      time.Duration

	// HelloStrings holds raw, base64-decoded hello bytes set per-port via
	// set_parameter("hello-string[port]", base64), spec §6.
	HelloStrings map[uint16][]byte
}

// NewConfig returns a Config with the defaults spec §4.1/§6 imply.
func NewConfig() *Config {
	return &Config{
		HTTP:              stream.NewHTTP(),
		HelloMode:         "http",
		ConnectionTimeout: 30 * time.Second,
		HelloTimeout:      2 * time.Second,
		HelloStrings:      make(map[uint16][]byte),
	}
}

// SetSSLClientHello installs the raw ClientHello record sent when
// HelloMode is "ssl". Distinct from hello-string[port], which the scan
// target's port selects independent of HelloMode.
func (c *Config) SetSSLClientHello(hello []byte) {
	c.sslClientHello = hello
	c.SSL = nil // force DefaultStream to rebuild with the new hello.
}

// SetHTTPHeader records an additional header set_http_header installs on
// every outgoing HTTP hello (spec §6 set_http_header).
func (c *Config) SetHTTPHeader(name, value string) {
	if c.HTTP.Headers == nil {
		c.HTTP.Headers = make(map[string]string)
	}
	c.HTTP.Headers[name] = value
}

// SetParameter dispatches one named configuration parameter, per spec §6
// set_parameter. Unknown names are rejected rather than silently ignored,
// since a typo'd scan parameter should fail loudly at configuration time
// rather than silently probe with defaults.
func (c *Config) SetParameter(name, value string) error {
	if port, ok, err := parseHelloStringName(name); ok {
		if err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return fmt.Errorf("engine: hello-string[%d]: invalid base64: %w", port, err)
		}
		c.HelloStrings[port] = decoded
		return nil
	}

	switch name {
	case "http-payload":
		c.HTTP.Payload = []byte(value)
	case "http-user-agent":
		c.HTTP.UserAgent = value
	case "http-host":
		c.HTTP.Host = value
	case "http-method":
		c.HTTP.Method = value
	case "http-url":
		c.HTTP.URL = value
	case "http-version":
		c.HTTP.Version = value
	case "timeout", "connection-timeout":
		d, err := parseSeconds(value)
		if err != nil {
			return fmt.Errorf("engine: %s: %w", name, err)
		}
		c.ConnectionTimeout = d
	case "hello-timeout":
		d, err := parseSeconds(value)
		if err != nil {
			return fmt.Errorf("engine: %s: %w", name, err)
		}
		c.HelloTimeout = d
	case "hello":
		switch value {
		case "ssl", "http", "smbv1":
			c.HelloMode = value
		default:
			return fmt.Errorf("engine: hello: unrecognized mode %q", value)
		}
	case "heartbleed":
		c.Heartbleed = true
	case "ticketbleed":
		c.Ticketbleed = true
	case "poodle", "sslv3":
		c.POODLE = true
	default:
		return fmt.Errorf("engine: unrecognized parameter %q", name)
	}
	return nil
}

func parseSeconds(value string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseHelloStringName(name string) (port uint16, matched bool, err error) {
	const prefix, suffix = "hello-string[", "]"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false, nil
	}
	inner := name[len(prefix) : len(name)-len(suffix)]
	n, err := strconv.ParseUint(inner, 10, 16)
	if err != nil {
		return 0, true, fmt.Errorf("engine: %s: invalid port: %w", name, err)
	}
	return uint16(n), true, nil
}

// DefaultStream builds the stream.ByPort table this Config implies: the
// HelloMode-selected stream as the catch-all default, plus any per-port
// hello-string overrides layered on top as a canned Hello for that port
// specifically (spec §6 hello-string[port]).
func (c *Config) DefaultStream() stream.Stream {
	switch c.HelloMode {
	case "ssl":
		if c.SSL == nil {
			c.SSL = stream.NewSSL(c.sslClientHello, c.Heartbleed, c.Ticketbleed, c.POODLE)
		}
		return c.SSL
	case "smbv1":
		if c.SMB == nil {
			c.SMB = stream.NewSMB(nil)
		}
		return c.SMB
	default:
		return c.HTTP
	}
}

// StreamsByPort builds the stream.ByPort table engine.Collaborators needs:
// DefaultStream() as the catch-all, overridden per-port by any
// hello-string[port] raw hello (spec §6).
func (c *Config) StreamsByPort(defaultPort uint16) stream.ByPort {
	byPort := stream.ByPort{defaultPort: c.DefaultStream()}
	for port, hello := range c.HelloStrings {
		byPort[port] = stream.NewRaw(hello)
	}
	return byPort
}
