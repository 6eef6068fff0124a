package sink

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/chanlog/chanlog/internal/event"
)

// DefaultSystemRotateMB is the size, in megabytes, at which the system log
// file rotates.
const DefaultSystemRotateMB = 1

// unknownChannelPrefix marks system-file lines that arrived for a channel
// the sink was not configured with.
const unknownChannelPrefix = "-- Received message from unknown channel:\n\t"

// FileSink writes one rotating log file per configured channel plus a
// size-rotated system file. Events for unrecognized channels and events
// without a channel land in the system file; unrecognized-channel lines are
// prefixed so they stand out.
type FileSink struct {
	dir             string
	channelRotateMB int
	maxBackups      int

	mu       sync.Mutex
	channels map[string]*lumberjack.Logger
	system   *lumberjack.Logger
}

// FileSinkConfig configures a FileSink.
type FileSinkConfig struct {
	// Dir is the directory all log files are created under.
	Dir string
	// Channels is the list of channels that get their own file.
	Channels []string
	// SystemRotateMB is the rotate size of the system file in megabytes.
	// Zero means DefaultSystemRotateMB.
	SystemRotateMB int
	// ChannelRotateMB is the rotate size of per-channel files in megabytes.
	// Zero means 100.
	ChannelRotateMB int
	// MaxBackups bounds how many rotated files are kept per logger.
	// Zero keeps everything.
	MaxBackups int
}

// NewFileSink builds a FileSink with one rotating logger per channel.
func NewFileSink(cfg FileSinkConfig) *FileSink {
	systemMB := cfg.SystemRotateMB
	if systemMB <= 0 {
		systemMB = DefaultSystemRotateMB
	}
	channelMB := cfg.ChannelRotateMB
	if channelMB <= 0 {
		channelMB = 100
	}
	s := &FileSink{
		dir:             cfg.Dir,
		channelRotateMB: channelMB,
		maxBackups:      cfg.MaxBackups,
		channels:        make(map[string]*lumberjack.Logger),
		system: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "system.log"),
			MaxSize:    systemMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
	}
	for _, ch := range cfg.Channels {
		s.channels[ch] = s.newChannelLogger(ch)
	}
	return s
}

func (s *FileSink) newChannelLogger(channel string) *lumberjack.Logger {
	name := strings.ReplaceAll(channel, string(filepath.Separator), "_")
	return &lumberjack.Logger{
		Filename:   filepath.Join(s.dir, name+".log"),
		MaxSize:    s.channelRotateMB,
		MaxBackups: s.maxBackups,
		Compress:   true,
	}
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// Log implements Sink. Channel events go to their channel's file when one
// is configured; everything else goes to the system file.
func (s *FileSink) Log(ev *event.Event) error {
	line := ev.Line() + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Channel != "" {
		if w, ok := s.channels[ev.Channel]; ok {
			_, err := w.Write([]byte(line))
			return err
		}
		line = unknownChannelPrefix + line
	}
	_, err := s.system.Write([]byte(line))
	return err
}

// SetChannels replaces the configured channel list, keeping live loggers
// for channels that remain and closing the ones that were dropped.
func (s *FileSink) SetChannels(channels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*lumberjack.Logger, len(channels))
	for _, ch := range channels {
		if w, ok := s.channels[ch]; ok {
			next[ch] = w
			delete(s.channels, ch)
			continue
		}
		next[ch] = s.newChannelLogger(ch)
	}

	var firstErr error
	for ch, w := range s.channels {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s logger: %w", ch, err)
		}
	}
	s.channels = next
	return firstErr
}

// Channels returns the channels the sink currently owns files for.
func (s *FileSink) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Close closes every underlying rotating file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, w := range s.channels {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.system.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
