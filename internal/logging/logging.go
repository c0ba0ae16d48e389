// Package logging configures loggo writers for the service.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
)

type Options struct {
	// Level is a loggo logging config such as "<root>=INFO;hanamigration.translator=DEBUG".
	Level string
	// Dir enables a rotating log file <Dir>/<AppName>.log when set.
	Dir     string
	AppName string
	Stderr  io.Writer
}

// Setup installs the stderr writer and, when configured, a size-rotated file
// writer. The returned closer flushes the file writer.
func Setup(opts Options) (io.Closer, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(stderr, loggo.DefaultFormatter)); err != nil {
		return nil, errors.Annotate(err, "replace default log writer")
	}

	level := opts.Level
	if level == "" {
		level = "<root>=INFO"
	}
	if err := loggo.ConfigureLoggers(level); err != nil {
		return nil, errors.Annotatef(err, "invalid log level %q", level)
	}

	if opts.Dir == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Annotatef(err, "create log dir %s", opts.Dir)
	}
	name := opts.AppName
	if name == "" {
		name = "hana-migration"
	}
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, name+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
	_, _ = loggo.RemoveWriter("file")
	if err := loggo.RegisterWriter("file", loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		_ = writer.Close()
		return nil, errors.Annotate(err, "register file log writer")
	}
	return writer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
