// Package recorder writes streamed hand joints to labelled text files for
// offline training.
package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// Config selects where and how a session records.
type Config struct {
	Dir     string
	Hand    tracking.Handedness
	Gesture string

	// FPS labels the output file.
	FPS int

	// Throttle limits writes to FPS lines per second. Without it every
	// tick with a visible hand is written.
	Throttle bool
}

// Registry keeps recording metadata. *store.RecordingRepository
// satisfies it.
type Registry interface {
	Create(rec *store.Recording) error
	Finish(id string, frames int, at time.Time) error
}

// Session appends one line per sampled tick to a recording file.
type Session struct {
	config   Config
	path     string
	file     *os.File
	sampler  *gesture.Sampler
	gate     *gesture.Gate
	registry Registry
	recID    string

	mu      sync.Mutex
	elapsed time.Duration
	frames  int
	buf     []byte

	closeOnce sync.Once
	closeErr  error
}

// NextPath returns the next free file name for a recording:
//
//	<dir>/<hand>_hand_<fps>fps_<gesture>_<n>.txt
//
// n is one more than the number of existing files with the same label.
func NextPath(dir string, hand tracking.Handedness, fps int, gesture string) (string, error) {
	prefix := fmt.Sprintf("%s_hand_%dfps_%s_", hand, fps, gesture)

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	n := 1
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".txt") {
			n++
		}
	}

	for {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.txt", prefix, n))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		n++
	}
}

// Open creates the next recording file for config and registers it when a
// registry is given.
func Open(config Config, source tracking.Source, registry Registry) (*Session, error) {
	if config.Gesture == "" {
		return nil, fmt.Errorf("recorder: gesture label is required")
	}
	if config.FPS < 0 {
		return nil, fmt.Errorf("recorder: fps must not be negative")
	}
	if config.Hand == "" {
		config.Hand = tracking.Right
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("recorder: create directory: %w", err)
	}

	path, err := NextPath(config.Dir, config.Hand, config.FPS, config.Gesture)
	if err != nil {
		return nil, fmt.Errorf("recorder: pick file name: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}

	s := &Session{
		config:   config,
		path:     path,
		file:     file,
		sampler:  gesture.NewSampler(source, config.Hand),
		gate:     gesture.NewGate(0),
		registry: registry,
	}
	if config.Throttle {
		s.gate = gesture.NewGate(config.FPS)
	}

	if registry != nil {
		rec := &store.Recording{
			Path:    path,
			Hand:    string(config.Hand),
			Gesture: config.Gesture,
			FPS:     config.FPS,
		}
		if err := registry.Create(rec); err != nil {
			lgr.Logger.Warn("failed to register recording", slog.String("path", path), slog.Any("error", err))
		} else {
			s.recID = rec.ID
		}
	}

	lgr.Logger.Info("recording started", slog.String("path", path), slog.String("hand", string(config.Hand)), slog.String("gesture", config.Gesture))
	return s, nil
}

// Path returns the file being written.
func (s *Session) Path() string {
	return s.path
}

// Frames returns the number of lines written so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// ProcessTick writes the current joints when the hand is visible. A write
// failure skips the tick and is returned; the session stays usable.
func (s *Session) ProcessTick(elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed += elapsed

	js, ok := s.sampler.Sample()
	if !ok || !s.gate.Allow(elapsed) {
		return nil
	}

	ts := float64(s.elapsed) / float64(time.Millisecond)
	s.buf = tracking.AppendRecord(s.buf[:0], ts, &js)
	if _, err := s.file.Write(s.buf); err != nil {
		return fmt.Errorf("recorder: write %s: %w", s.path, err)
	}
	s.frames++
	return nil
}

// Close closes the file and records the final frame count.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closeErr = s.file.Close()

		if s.registry != nil && s.recID != "" {
			if err := s.registry.Finish(s.recID, s.frames, time.Now()); err != nil {
				lgr.Logger.Warn("failed to finish recording", slog.String("id", s.recID), slog.Any("error", err))
			}
		}
		lgr.Logger.Info("recording stopped", slog.String("path", s.path), slog.Int("frames", s.frames))
	})
	return s.closeErr
}
