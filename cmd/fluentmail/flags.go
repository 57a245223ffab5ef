package main

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/pure-golang/fluentmail/mail"
)

const (
	transportSMTP     = "smtp"
	transportSendmail = "sendmail"
)

// listFlag collects a repeatable flag. Each value may hold several
// comma-separated addresses.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, mail.ListSeparator)
}

func (l *listFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

// addresses keeps a lone address a Single so the header is rendered as given.
func (l listFlag) addresses() mail.Addresses {
	if len(l) == 1 {
		return mail.Single(l[0])
	}
	return mail.List(l)
}

type options struct {
	from     string
	to       listFlag
	cc       listFlag
	bcc      listFlag
	replyTo  listFlag
	subject  string
	body     string
	bodyFile string
	html     bool
	charset  string

	attach        []string
	attachCharset string

	render    bool
	relay     bool
	transport string
	envFile   string
	maxSize   string
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("fluentmail", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.from, "from", "", "sender address")
	fs.Var(&opts.to, "to", "recipient, repeatable or comma-separated")
	fs.Var(&opts.cc, "cc", "carbon copy recipient")
	fs.Var(&opts.bcc, "bcc", "blind carbon copy recipient, written to the Bcc header")
	fs.Var(&opts.replyTo, "reply-to", "Reply-To address")
	fs.StringVar(&opts.subject, "subject", "", "subject line")
	fs.StringVar(&opts.body, "body", "", "body text")
	fs.StringVar(&opts.bodyFile, "body-file", "", "read the body from a file, - for stdin")
	fs.BoolVar(&opts.html, "html", false, "send the body as text/html")
	fs.StringVar(&opts.charset, "charset", "utf-8", "body charset")
	fs.Func("attach", "attach a file, repeatable", func(path string) error {
		opts.attach = append(opts.attach, path)
		return nil
	})
	fs.StringVar(&opts.attachCharset, "attach-charset", "", "charset of text attachments, e.g. latin1")
	fs.BoolVar(&opts.render, "render", false, "print the rendered message instead of sending it")
	fs.BoolVar(&opts.relay, "relay", false, "send to an in-process relay and print what it received")
	fs.StringVar(&opts.transport, "transport", transportSMTP, "smtp or sendmail")
	fs.StringVar(&opts.envFile, "env-file", "", "load configuration from this file instead of .env")
	fs.StringVar(&opts.maxSize, "max-size", "", "refuse messages larger than this, e.g. 10MB")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	switch opts.transport {
	case transportSMTP, transportSendmail:
	default:
		return nil, errors.Errorf("unknown transport %q", opts.transport)
	}
	if opts.body != "" && opts.bodyFile != "" {
		return nil, errors.New("-body and -body-file are mutually exclusive")
	}

	return opts, nil
}

// message builds the message described by the flags.
func (o *options) message(stdin io.Reader) (*mail.Message, error) {
	body := o.body
	if o.bodyFile != "" {
		data, err := readBody(o.bodyFile, stdin)
		if err != nil {
			return nil, err
		}
		body = string(data)
	}

	msg := mail.NewMessage().
		SetFrom(o.from).
		SetSubject(o.subject).
		SetBody(body, mail.WithCharset(o.charset), mail.AsHTML(o.html))

	for _, l := range []struct {
		list listFlag
		add  func(mail.Addresses) *mail.Message
	}{
		{o.to, msg.AddTo},
		{o.cc, msg.AddCc},
		{o.bcc, msg.AddBcc},
		{o.replyTo, msg.SetReplyTo},
	} {
		if len(l.list) > 0 {
			l.add(l.list.addresses())
		}
	}

	var attachOpts []mail.AttachmentOption
	if o.attachCharset != "" {
		attachOpts = append(attachOpts, mail.WithAttachmentCharset(o.attachCharset))
	}
	for _, path := range o.attach {
		msg.AddAttachment(path, attachOpts...)
	}

	return msg, nil
}

// sizeLimit returns the -max-size value in bytes, 0 when unset.
func (o *options) sizeLimit() (int64, error) {
	if o.maxSize == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(o.maxSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid -max-size %q", o.maxSize)
	}
	return n, nil
}

func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "failed to read body from stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "failed to read body from %s", path)
}
