package tracking

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/lgr"
)

// ProcessSource reads joint poses from an external hand-tracking process.
//
// The process writes one JSON document per line on stdout:
//
//	{"hands":[{"handedness":"right","joints":[{"joint":2,"position":[x,y,z],"rotation":[x,y,z,w]}]}]}
//
// Lines are consumed on a background goroutine; Latch publishes the most
// recent one to TryGetJointPose. A frame older than StaleAfter, or any frame
// once the tracker has exited, latches as no hands.
type ProcessSource struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	latest   map[Handedness]JointSet
	received time.Time
	current  map[Handedness]JointSet
	frames   int
	stale    time.Duration
	now      func() time.Time

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// StaleAfter is how long a tracker frame stays current without a newer one.
const StaleAfter = 250 * time.Millisecond

// NewProcessSource starts the tracker command from config.Command.
func NewProcessSource(config Config) (*ProcessSource, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("tracker command is empty")
	}

	cmd := exec.Command(config.Command[0], config.Command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Surface tracker diagnostics
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tracker: %w", err)
	}

	s := newProcessSource()
	s.cmd = cmd
	go s.read(stdout)

	lgr.Logger.Info("tracker process started",
		slog.String("command", config.Command[0]),
		slog.Int("pid", cmd.Process.Pid),
	)

	return s, nil
}

func newProcessSource() *ProcessSource {
	return &ProcessSource{
		latest:  make(map[Handedness]JointSet),
		current: make(map[Handedness]JointSet),
		stale:   StaleAfter,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// read consumes tracker output until EOF.
func (s *ProcessSource) read(r io.Reader) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.latest = nil
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		hands, err := decodeTrackerLine(scanner.Bytes())
		if err != nil {
			lgr.Logger.Warn("skipping tracker line", slog.Any("error", err))
			continue
		}

		s.mu.Lock()
		s.latest = hands
		s.received = s.now()
		s.frames++
		s.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		s.readErr = err
		s.mu.Unlock()
	}
}

// Latch makes the most recent tracker frame current.
func (s *ProcessSource) Latch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || s.now().Sub(s.received) > s.stale {
		s.current = nil
		return
	}
	s.current = s.latest
}

// Frames returns how many tracker frames have been received.
func (s *ProcessSource) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// TryGetJointPose returns a joint pose from the latched frame.
func (s *ProcessSource) TryGetJointPose(j Joint, hand Handedness) (Pose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.current[hand]
	if !ok {
		return Pose{}, false
	}
	return js.Get(j)
}

// Close stops the tracker process and waits for the reader to finish.
func (s *ProcessSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = killErr
		}
		<-s.done
		// The exit status of a killed tracker is expected
		_ = s.cmd.Wait()

		s.mu.Lock()
		if s.readErr != nil && err == nil {
			err = s.readErr
		}
		s.mu.Unlock()
	})
	return err
}

// trackerFrame is the JSON structure written by the tracker process.
type trackerFrame struct {
	Hands []trackerHand `json:"hands"`
}

type trackerHand struct {
	Handedness string         `json:"handedness"`
	Joints     []trackerJoint `json:"joints"`
}

type trackerJoint struct {
	Joint    int        `json:"joint"`
	Position [3]float32 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

func decodeTrackerLine(line []byte) (map[Handedness]JointSet, error) {
	var frame trackerFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return nil, fmt.Errorf("parse tracker frame: %w", err)
	}

	hands := make(map[Handedness]JointSet, len(frame.Hands))
	for _, h := range frame.Hands {
		hand, err := ParseHandedness(h.Handedness)
		if err != nil {
			return nil, err
		}

		var js JointSet
		for _, j := range h.Joints {
			js.Set(Joint(j.Joint), Pose{
				Position: Vec3{X: j.Position[0], Y: j.Position[1], Z: j.Position[2]},
				Rotation: Quat{X: j.Rotation[0], Y: j.Rotation[1], Z: j.Rotation[2], W: j.Rotation[3]},
			})
		}
		hands[hand] = js
	}

	return hands, nil
}
