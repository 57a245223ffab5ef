package metrics

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config enables the /metrics endpoint when Host is set and a
// node_exporter textfile dump when Textfile is set. A one-shot CLI run
// usually wants the textfile.
type Config struct {
	Host        string        `envconfig:"METRICS_HOST"`
	Port        int           `envconfig:"METRICS_PORT" default:"9090"`
	ReadTimeout time.Duration `envconfig:"METRICS_READ_TIMEOUT" default:"30s"`
	Textfile    string        `envconfig:"METRICS_TEXTFILE"`
}

// Enabled reports whether any output is configured.
func (c Config) Enabled() bool {
	return c.Host != "" || c.Textfile != ""
}

type Metrics struct {
	config   Config
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
}

func InitDefault(config Config) (io.Closer, error) {
	provider := New(config)
	if err := provider.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics")
	}

	return provider, nil
}

func New(config Config) *Metrics {
	m := &Metrics{
		config:   config,
		gatherer: prometheus.DefaultGatherer,
	}
	if config.Host != "" {
		m.server = NewHttpServer(config)
	}
	return m
}

func (s *Metrics) Start() error {
	if err := InitPrometheus(); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	if s.server == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

// Addr returns the listening address of the endpoint, or "" when the
// endpoint is not running.
func (s *Metrics) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the endpoint and writes the textfile.
func (s *Metrics) Close() error {
	if s.server != nil {
		if err := s.server.Close(); err != nil {
			return errors.Wrap(err, "failed to close metrics")
		}
	}

	if s.config.Textfile != "" {
		if err := prometheus.WriteToTextfile(s.config.Textfile, s.gatherer); err != nil {
			return errors.Wrapf(err, "failed to write metrics to %s", s.config.Textfile)
		}
	}

	return nil
}

func NewHttpServer(conf Config) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:        net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
		Handler:     r,
		ReadTimeout: conf.ReadTimeout,
	}
}
