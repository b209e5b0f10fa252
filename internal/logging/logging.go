// Package logging builds the zerolog logger shared by the panel.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o664

type Builder struct {
	writer io.Writer
	path   string
	level  zerolog.Level
	pretty bool
}

func New() *Builder {
	return &Builder{level: zerolog.InfoLevel}
}

func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// Level sets the minimum level by name; unknown names keep the default.
func (b *Builder) Level(name string) *Builder {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name))); err == nil && name != "" {
		b.level = lvl
	}
	return b
}

// Pretty switches to the human-readable console writer.
func (b *Builder) Pretty(on bool) *Builder {
	b.pretty = on
	return b
}

// Make returns the logger and the file it writes to, if any. The caller
// closes the file.
func (b *Builder) Make() (zerolog.Logger, *os.File, error) {
	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	if b.writer != nil {
		w = b.writer
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		file = f
		w = zerolog.SyncWriter(f)
	}
	if b.pretty {
		w = zerolog.ConsoleWriter{Out: w, NoColor: file != nil}
	}
	return zerolog.New(w).Level(b.level).With().Timestamp().Logger(), file, nil
}
