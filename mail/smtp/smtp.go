package smtp

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Security selects how the connection to the relay is protected.
type Security int

const (
	SecurityPlain    Security = iota // plain TCP, "AUTH"
	SecuritySSL                      // TLS from the first byte
	SecurityStartTLS                 // plain TCP upgraded with STARTTLS
)

func (s Security) String() string {
	switch s {
	case SecuritySSL:
		return "SSL"
	case SecurityStartTLS:
		return "StartTLS"
	default:
		return "AUTH"
	}
}

// Decode implements envconfig.Decoder.
func (s *Security) Decode(value string) error {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "AUTH", "PLAIN":
		*s = SecurityPlain
	case "SSL":
		*s = SecuritySSL
	case "STARTTLS", "TLS":
		*s = SecurityStartTLS
	default:
		return errors.Errorf("unknown security mode %q", value)
	}
	return nil
}

// DefaultPort returns the conventional submission port for the mode.
func (s Security) DefaultPort() int {
	switch s {
	case SecuritySSL:
		return 465
	case SecurityStartTLS:
		return 587
	default:
		return 25
	}
}

// Verb is the greeting sent when no credentials are configured.
type Verb int

const (
	VerbEHLO Verb = iota
	VerbHELO
)

func (v Verb) String() string {
	if v == VerbHELO {
		return "HELO"
	}
	return "EHLO"
}

// Decode implements envconfig.Decoder.
func (v *Verb) Decode(value string) error {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "EHLO":
		*v = VerbEHLO
	case "HELO":
		*v = VerbHELO
	default:
		return errors.Errorf("unknown greeting verb %q", value)
	}
	return nil
}

// Config contains SMTP connection parameters.
type Config struct {
	Host      string        `envconfig:"SMTP_HOST" required:"true"`          // smtp.gmail.com
	Port      int           `envconfig:"SMTP_PORT"`                          // 0 picks the default port for Security
	Security  Security      `envconfig:"SMTP_SECURITY" default:"AUTH"`       // AUTH, SSL or StartTLS
	Verb      Verb          `envconfig:"SMTP_VERB" default:"EHLO"`           // greeting without credentials
	Username  string        `envconfig:"SMTP_USER"`                          // username or email
	Password  string        `envconfig:"SMTP_PASSWORD"`                      // password or app password
	LocalName string        `envconfig:"SMTP_LOCAL_NAME" default:"localhost"` // name sent with HELO/EHLO
	Insecure  bool          `envconfig:"SMTP_INSECURE" default:"false"`      // skip certificate verification
	Timeout   time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`         // dial and per command timeout
}

// ResolvedPort returns Port, or the default port of Security when Port is 0.
func (c Config) ResolvedPort() int {
	if c.Port != 0 {
		return c.Port
	}
	return c.Security.DefaultPort()
}

// Addr returns the host:port of the relay.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ResolvedPort()))
}

func (c Config) localName() string {
	if c.LocalName == "" {
		return "localhost"
	}
	return c.LocalName
}
