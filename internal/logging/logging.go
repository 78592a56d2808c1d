// Package logging builds the process logger. Every logger it returns redacts
// fields that could hold credential material.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const redacted = "[REDACTED]"

// Options configure New.
type Options struct {
	Out    io.Writer // defaults to os.Stderr
	Level  string    // logrus level name; defaults to info
	Format string    // text, json, or auto (text on a terminal)
}

// New returns a logrus logger with the redaction hook installed.
func New(opts Options) *logrus.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if useJSON(opts.Format, out) {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log.AddHook(RedactHook{})
	return log
}

// Discard returns a logger that writes nowhere, for tests and quiet commands.
func Discard() *logrus.Logger {
	return New(Options{Out: io.Discard})
}

func useJSON(format string, out io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// RedactHook replaces the value of any field whose name suggests a credential.
type RedactHook struct{}

func (RedactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (RedactHook) Fire(entry *logrus.Entry) error {
	for k := range entry.Data {
		if Sensitive(k) {
			entry.Data[k] = redacted
		}
	}
	return nil
}

var sensitiveWords = []string{"password", "secret", "token", "key", "blob", "credential"}

// Sensitive reports whether a field name must never carry its value.
func Sensitive(field string) bool {
	f := strings.ToLower(field)
	for _, w := range sensitiveWords {
		if strings.Contains(f, w) {
			return true
		}
	}
	return false
}

// SessionID shortens a session id for logs. Full ids authenticate API
// callers, so only the first eight characters are ever written.
func SessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
