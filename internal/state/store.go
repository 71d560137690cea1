package state

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/doridoridoriand/glowping/internal/log"
	"github.com/doridoridoriand/glowping/internal/ring"
)

const (
	tailChunk      = 4096
	maxLineLength  = 64 * 1024
	defaultMaxSize = 1
	defaultBackups = 3
)

// Options configures a LogStore.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// LogStore keeps the ring state as the last line of an append-only log.
// Rotation is delegated to lumberjack; the current file always ends with
// the most recent line.
type LogStore struct {
	path   string
	ring   ring.Ring
	clock  clockwork.Clock
	logger *log.Logger
	writer *lumberjack.Logger
}

// NewLogStore returns a store for opts.Path. Nothing is opened until the
// first Save.
func NewLogStore(opts Options, r ring.Ring, clock clockwork.Clock, logger *log.Logger) *LogStore {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = defaultMaxSize
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultBackups
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &LogStore{
		path:   opts.Path,
		ring:   r,
		clock:  clock,
		logger: logger,
		writer: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		},
	}
}

// Path returns the log file the store reads and appends to.
func (s *LogStore) Path() string {
	return s.path
}

func (s *LogStore) Load() ring.State {
	line, err := lastLine(s.path)
	if err != nil {
		s.logger.LogStateRecovery(s.path, "", err)
		return ring.Empty()
	}
	st, err := ParseLine(line)
	if err != nil {
		s.logger.LogStateRecovery(s.path, line, err)
		return ring.Empty()
	}
	st, dropped := st.Within(s.ring)
	if len(dropped) > 0 {
		s.logger.Warn("dropped slots outside the ring", map[string]interface{}{
			"path":    s.path,
			"dropped": dropped,
		})
	}
	return st
}

func (s *LogStore) Save(st ring.State) error {
	line := FormatLine(s.clock.Now(), st) + "\n"
	if _, err := io.WriteString(s.writer, line); err != nil {
		return fmt.Errorf("append state to %s: %w", s.path, err)
	}
	return nil
}

func (s *LogStore) Close() error {
	return s.writer.Close()
}

// lastLine returns the last non-empty line of the file at path, reading
// backwards so the cost does not grow with the log.
func lastLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	var tail []byte
	offset := info.Size()
	for offset > 0 {
		n := int64(tailChunk)
		if offset < n {
			n = offset
		}
		offset -= n
		chunk := make([]byte, n)
		if _, err := f.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		tail = append(chunk, tail...)

		trimmed := bytes.TrimRight(tail, " \t\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return string(bytes.TrimSpace(trimmed[i+1:])), nil
		}
		if len(trimmed) > maxLineLength {
			return "", fmt.Errorf("last line exceeds %d bytes", maxLineLength)
		}
	}

	line := bytes.TrimSpace(tail)
	if len(line) == 0 {
		return "", ErrEmptyLog
	}
	return string(line), nil
}
