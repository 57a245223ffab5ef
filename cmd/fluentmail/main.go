// Command fluentmail builds a message from flags and renders or sends it.
//
// Relay settings come from the environment (SMTP_HOST, SMTP_SECURITY, ...)
// or an env file. Logs go to stderr, rendered output to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/pure-golang/fluentmail/env"
	"github.com/pure-golang/fluentmail/executor/cli"
	"github.com/pure-golang/fluentmail/logger"
	"github.com/pure-golang/fluentmail/mail"
	"github.com/pure-golang/fluentmail/mail/sendmail"
	"github.com/pure-golang/fluentmail/mail/smtp"
	"github.com/pure-golang/fluentmail/mail/smtp/smtptest"
	"github.com/pure-golang/fluentmail/metrics"
	"github.com/pure-golang/fluentmail/tracing"
	"github.com/pure-golang/fluentmail/tracing/otlp"
)

// ErrTooLarge is returned when the rendered message exceeds -max-size.
var ErrTooLarge = errors.New("message exceeds the size limit")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluentmail:", err)
		stop()
		os.Exit(1)
	}
}

type app struct {
	opts   *options
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	a := &app{opts: opts, stdout: stdout}

	var (
		logCfg     logger.Config
		metricsCfg metrics.Config
		tracingCfg otlp.Config
	)
	if err := a.loadEnv(&logCfg, &metricsCfg, &tracingCfg); err != nil {
		return err
	}
	log := logger.New(logCfg, stderr)
	ctx = logger.NewContext(ctx, log)

	if metricsCfg.Enabled() {
		closer, err := metrics.InitDefault(metricsCfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closer.Close(); err != nil {
				logger.FromContextWithErr(ctx, err).Warn("failed to flush metrics")
			}
		}()
	}

	if tracingCfg.Enabled() {
		provider, err := tracing.Init(otlp.NewProviderBuilder(tracingCfg))
		if err != nil {
			logger.FromContextWithErr(ctx, err).Warn("tracing disabled")
		}
		defer func() {
			if err := provider.Close(); err != nil {
				logger.FromContextWithErr(ctx, err).Warn("failed to flush traces")
			}
		}()
	}

	msg, err := opts.message(stdin)
	if err != nil {
		return err
	}

	doc, err := msg.Render(nil)
	if err != nil {
		return err
	}
	limit, err := opts.sizeLimit()
	if err != nil {
		return err
	}
	if limit > 0 && int64(len(doc)) > limit {
		return errors.Wrapf(ErrTooLarge, "%s > %s",
			units.BytesSize(float64(len(doc))), units.BytesSize(float64(limit)))
	}

	if opts.render {
		_, err := io.WriteString(stdout, doc)
		return errors.Wrap(err, "failed to write message")
	}

	if opts.relay {
		return a.sendToRelay(ctx, msg, limit)
	}

	sender, err := a.sender()
	if err != nil {
		return err
	}
	defer func() {
		if err := sender.Close(); err != nil {
			logger.FromContextWithErr(ctx, err).Warn("failed to close sender")
		}
	}()

	return sender.Send(ctx, msg, nil)
}

func (a *app) loadEnv(configs ...any) error {
	if a.opts.envFile != "" {
		return env.Load(a.opts.envFile, configs...)
	}
	return env.InitConfig(configs...)
}

func (a *app) sender() (mail.Sender, error) {
	switch a.opts.transport {
	case transportSendmail:
		var cfg cli.Config
		if err := a.loadEnv(&cfg); err != nil {
			return nil, err
		}
		exec := cli.New(cfg)
		if err := exec.Start(); err != nil {
			return nil, err
		}
		return sendmail.NewSender(exec), nil
	default:
		var cfg smtp.Config
		if err := a.loadEnv(&cfg); err != nil {
			return nil, err
		}
		return smtp.NewSender(cfg), nil
	}
}

// sendToRelay delivers msg to an in-process relay over SMTP and prints the
// session: the client verbs, the envelope and the received document.
func (a *app) sendToRelay(ctx context.Context, msg *mail.Message, limit int64) error {
	var relayOpts []smtptest.Option
	if limit > 0 {
		relayOpts = append(relayOpts, smtptest.WithMaxMessageBytes(limit))
	}

	relay, err := smtptest.NewRelay(relayOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = relay.Close() }()

	sender := smtp.NewSender(smtp.Config{
		Host:    relay.Host(),
		Port:    relay.Port(),
		Timeout: 10 * time.Second,
	}, smtp.WithTLSConfig(relay.ClientTLSConfig()))
	defer func() { _ = sender.Close() }()

	if err := sender.Send(ctx, msg, nil); err != nil {
		return err
	}

	for _, m := range relay.Messages() {
		fmt.Fprintf(a.stdout, "%s\nMAIL FROM:<%s>\n", strings.Join(relay.Commands(), " "), m.From)
		for _, to := range m.To {
			fmt.Fprintf(a.stdout, "RCPT TO:<%s>\n", to)
		}
		fmt.Fprintf(a.stdout, "\n%s", m.Data)
	}
	return nil
}
