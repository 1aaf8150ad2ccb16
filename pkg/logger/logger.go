package logger

import (
	"fmt"
	"io"
	"os"
)

// Logger receives the per-file events of prework and postwork
type Logger interface {
	Link(source, target string)
	Replace(source, target string)
	Present(target string)
	Skip(source, reason string)
	Table(path, mode string, entries int)
	Error(operation, path string, err error)
	Debug(message string)
}

// ConsoleLogger prints events in the style of `aws s3 sync`
type ConsoleLogger struct {
	IsDryRun  bool
	IsQuiet   bool
	IsVerbose bool

	Out    io.Writer // defaults to os.Stdout
	ErrOut io.Writer // defaults to os.Stderr
}

func (l *ConsoleLogger) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *ConsoleLogger) errOut() io.Writer {
	if l.ErrOut != nil {
		return l.ErrOut
	}
	return os.Stderr
}

func (l *ConsoleLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *ConsoleLogger) Link(source, target string) {
	if !l.IsQuiet {
		fmt.Fprintf(l.out(), "%slink: %s to %s\n", l.prefix(), source, target)
	}
}

func (l *ConsoleLogger) Replace(source, target string) {
	if !l.IsQuiet {
		fmt.Fprintf(l.out(), "%sreplace: %s to %s\n", l.prefix(), source, target)
	}
}

func (l *ConsoleLogger) Present(target string) {
	if l.IsVerbose && !l.IsQuiet {
		fmt.Fprintf(l.out(), "present: %s\n", target)
	}
}

func (l *ConsoleLogger) Skip(source, reason string) {
	if l.IsVerbose && !l.IsQuiet {
		fmt.Fprintf(l.out(), "skip: %s (%s)\n", source, reason)
	}
}

func (l *ConsoleLogger) Table(path, mode string, entries int) {
	if !l.IsQuiet {
		fmt.Fprintf(l.out(), "%s: %s (%d entries)\n", mode, path, entries)
	}
}

func (l *ConsoleLogger) Error(operation, path string, err error) {
	fmt.Fprintf(l.errOut(), "ERROR: %s %s: %v\n", operation, path, err)
}

func (l *ConsoleLogger) Debug(message string) {
	if l.IsVerbose && !l.IsQuiet {
		fmt.Fprintf(l.out(), "DEBUG: %s\n", message)
	}
}

type NullLogger struct{}

func (l *NullLogger) Link(source, target string) {}

func (l *NullLogger) Replace(source, target string) {}

func (l *NullLogger) Present(target string) {}

func (l *NullLogger) Skip(source, reason string) {}

func (l *NullLogger) Table(path, mode string, entries int) {}

func (l *NullLogger) Error(operation, path string, err error) {}

func (l *NullLogger) Debug(message string) {}
