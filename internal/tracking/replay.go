package tracking

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ReplaySource plays back a recorder file, one recorded line per tick.
// Call Latch once per tick to advance to the next line.
type ReplaySource struct {
	mu     sync.Mutex
	hand   Handedness
	frames []JointSet
	cursor int
	loop   bool
}

// NewReplaySource loads the recording at config.ReplayPath.
func NewReplaySource(config Config) (*ReplaySource, error) {
	f, err := os.Open(config.ReplayPath)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	frames, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", config.ReplayPath, err)
	}

	return &ReplaySource{
		hand:   config.Hand,
		frames: frames,
		cursor: -1,
		loop:   config.Loop,
	}, nil
}

// ReadRecords parses every non-empty line of a recording.
func ReadRecords(r io.Reader) ([]JointSet, error) {
	var frames []JointSet

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		_, js, err := ParseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, js)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// Latch advances playback by one recorded frame.
func (r *ReplaySource) Latch() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursor++
	if r.cursor >= len(r.frames) && r.loop && len(r.frames) > 0 {
		r.cursor = 0
	}
}

// Done reports whether a non-looping replay has run past its last frame.
func (r *ReplaySource) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.loop && r.cursor >= len(r.frames)
}

// Len returns the number of recorded frames.
func (r *ReplaySource) Len() int {
	return len(r.frames)
}

// TryGetJointPose returns the joint pose from the current recorded frame.
func (r *ReplaySource) TryGetJointPose(j Joint, hand Handedness) (Pose, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hand != r.hand || r.cursor < 0 || r.cursor >= len(r.frames) {
		return Pose{}, false
	}
	return r.frames[r.cursor].Get(j)
}
