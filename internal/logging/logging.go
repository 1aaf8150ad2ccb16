package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger writes run-level messages to the console
type Logger struct {
	quiet   bool
	verbose bool
	out     io.Writer
	err     io.Writer
}

// NewLogger creates a new logger
func NewLogger(quiet, verbose bool) *Logger {
	return &Logger{
		quiet:   quiet,
		verbose: verbose && !quiet,
		out:     os.Stdout,
		err:     os.Stderr,
	}
}

// SetOutput redirects normal and error output
func (l *Logger) SetOutput(out, err io.Writer) {
	l.out = out
	l.err = err
}

func (l *Logger) Quiet() bool {
	return l.quiet
}

func (l *Logger) Verbose() bool {
	return l.verbose
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.quiet {
		fmt.Fprintf(l.out, format+"\n", args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.err, "ERROR: "+format+"\n", args...)
}

// Debug logs a debug message when verbose output is on
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.verbose {
		fmt.Fprintf(l.out, "DEBUG: "+format+"\n", args...)
	}
}

// Summary counts what a postwork run did
type Summary struct {
	Linked      int64
	Replaced    int64
	Present     int64
	Skipped     int64
	Errors      int64
	BytesLinked int64
	Duration    time.Duration
}

// PrintSummary prints a summary of the run
func (l *Logger) PrintSummary(s Summary) {
	if l.quiet && s.Errors == 0 {
		return
	}

	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "=== Summary ===")
	fmt.Fprintf(l.out, "Linked: %d files (%s)\n", s.Linked+s.Replaced, humanize.Bytes(uint64(s.BytesLinked)))
	if s.Replaced > 0 {
		fmt.Fprintf(l.out, "Replaced stale links: %d\n", s.Replaced)
	}
	fmt.Fprintf(l.out, "Already present: %d\n", s.Present)
	fmt.Fprintf(l.out, "Unmatched: %d\n", s.Skipped)
	if s.Errors > 0 {
		fmt.Fprintf(l.out, "Errors: %d\n", s.Errors)
	}
	fmt.Fprintf(l.out, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}
