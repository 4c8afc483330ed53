package tracking

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const epsilon = 1e-4

func TestJointSet(t *testing.T) {
	t.Run("set and get tracked joint", func(t *testing.T) {
		var js JointSet
		js.Set(IndexTip, Pose{Position: Vec3{X: 1, Y: 2, Z: 3}, Rotation: Identity})

		p, ok := js.Get(IndexTip)
		if !ok {
			t.Fatal("expected IndexTip to be resolved")
		}
		if p.Position.Y != 2 {
			t.Errorf("expected Y 2, got %f", p.Position.Y)
		}
		if js.Complete() {
			t.Error("expected set with one joint to be incomplete")
		}
	})

	t.Run("reserved joint is ignored", func(t *testing.T) {
		var js JointSet
		js.Set(None, Pose{Position: Vec3{X: 9}})

		if _, ok := js.Get(None); ok {
			t.Error("expected None to never resolve")
		}
		for i, r := range js.Resolved {
			if r {
				t.Errorf("slot %d unexpectedly resolved", i)
			}
		}
	})

	t.Run("open hand is complete", func(t *testing.T) {
		js := OpenHand(Vec3{})
		if !js.Complete() {
			t.Error("expected OpenHand to resolve every joint")
		}
	})
}

func TestJointNames(t *testing.T) {
	if NumJoints != 26 {
		t.Fatalf("expected 26 tracked joints, got %d", NumJoints)
	}
	if Palm.String() != "Palm" || PinkyTip.String() != "PinkyTip" {
		t.Errorf("unexpected names %s, %s", Palm, PinkyTip)
	}
	if Wrist.Index() != 0 {
		t.Errorf("expected Wrist in slot 0, got %d", Wrist.Index())
	}
}

func TestParseHandedness(t *testing.T) {
	tests := []struct {
		in      string
		want    Handedness
		wantErr bool
	}{
		{"right", Right, false},
		{" Left ", Left, false},
		{"RIGHT", Right, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		got, err := ParseHandedness(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHandedness(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHandedness(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDistance(t *testing.T) {
	d := Distance(Vec3{}, Vec3{X: 3, Y: 4})
	if math.Abs(float64(d)-5) > epsilon {
		t.Errorf("expected 5, got %f", d)
	}
}

func TestRecord_Format(t *testing.T) {
	var js JointSet
	js.Set(Wrist, Pose{Position: Vec3{X: 0.1, Y: 0.2, Z: 0.3}, Rotation: Quat{W: 1}})

	line := string(AppendRecord(nil, 1500, &js))

	if !strings.HasPrefix(line, "1500 | 0.1000 0.2000 0.3000 0.0000 0.0000 0.0000 1.0000, nan") {
		t.Errorf("unexpected record prefix: %q", line[:60])
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected record to end with newline")
	}
	if got := strings.Count(line, ","); got != NumJoints-1 {
		t.Errorf("expected %d separators, got %d", NumJoints-1, got)
	}
}

func TestRecord_ParseKeepsUnresolvedJoints(t *testing.T) {
	js := OpenHand(Vec3{X: 0.5, Y: 1.2, Z: 0.3})
	js.Resolved[ThumbTip.Index()] = false
	js.Poses[ThumbTip.Index()] = Pose{}

	ts, parsed, err := ParseRecord(string(AppendRecord(nil, 42.5, &js)))
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if ts != 42.5 {
		t.Errorf("expected timestamp 42.5, got %f", ts)
	}
	if _, ok := parsed.Get(ThumbTip); ok {
		t.Error("expected ThumbTip to stay unresolved")
	}

	want, _ := js.Get(PinkyTip)
	got, ok := parsed.Get(PinkyTip)
	if !ok {
		t.Fatal("expected PinkyTip to be resolved")
	}
	if math.Abs(float64(got.Position.X-want.Position.X)) > epsilon {
		t.Errorf("expected PinkyTip X %f, got %f", want.Position.X, got.Position.X)
	}
}

func TestRecord_ParseErrors(t *testing.T) {
	lines := []string{
		"no separator",
		"abc | 1 2 3 4 5 6 7",
		"10 | 1 2 3",
		"10 | 1 2 3 4 5 6 x",
	}
	for _, line := range lines {
		if _, _, err := ParseRecord(line); err == nil {
			t.Errorf("ParseRecord(%q) expected error", line)
		}
	}

	// Trailing comma written by older recordings
	if _, _, err := ParseRecord("10 | 1 2 3 4 5 6 7,"); err != nil {
		t.Errorf("expected trailing comma to be accepted: %v", err)
	}
}

func TestMockSource(t *testing.T) {
	t.Run("no hand by default", func(t *testing.T) {
		m := NewMockSource(Right)
		if _, ok := m.TryGetJointPose(Palm, Right); ok {
			t.Error("expected no palm before SetJoints")
		}
	})

	t.Run("only answers for its hand", func(t *testing.T) {
		m := NewMockSource(Right)
		m.SetJoints(OpenHand(Vec3{}))

		if _, ok := m.TryGetJointPose(Palm, Right); !ok {
			t.Error("expected palm for right hand")
		}
		if _, ok := m.TryGetJointPose(Palm, Left); ok {
			t.Error("expected no palm for left hand")
		}
	})

	t.Run("hide removes hand", func(t *testing.T) {
		m := NewMockSource(Right)
		m.SetJoints(OpenHand(Vec3{}))
		m.Hide()

		if _, ok := m.TryGetJointPose(Palm, Right); ok {
			t.Error("expected no palm after Hide")
		}
		if m.Queries() != 1 {
			t.Errorf("expected 1 query, got %d", m.Queries())
		}
	})
}

func TestReplaySource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "right_hand_60fps_wave_1.txt")

	var buf []byte
	for i := 0; i < 3; i++ {
		js := Translate(OpenHand(Vec3{}), Vec3{X: float32(i) * 0.01})
		buf = AppendRecord(buf, float64(i)*16.6, &js)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("failed to write recording: %v", err)
	}

	src, err := NewReplaySource(Config{Hand: Right, ReplayPath: path})
	if err != nil {
		t.Fatalf("NewReplaySource() error = %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", src.Len())
	}

	if _, ok := src.TryGetJointPose(Wrist, Right); ok {
		t.Error("expected no frame before first Latch")
	}

	src.Latch()
	src.Latch()
	p, ok := src.TryGetJointPose(Wrist, Right)
	if !ok {
		t.Fatal("expected wrist on second frame")
	}
	if math.Abs(float64(p.Position.X)-0.01) > epsilon {
		t.Errorf("expected wrist X 0.01, got %f", p.Position.X)
	}

	src.Latch()
	src.Latch()
	if !src.Done() {
		t.Error("expected replay to be done")
	}
	if _, ok := src.TryGetJointPose(Wrist, Right); ok {
		t.Error("expected no hand after the last frame")
	}
}

func TestReplaySource_Loop(t *testing.T) {
	js := OpenHand(Vec3{})
	frames, err := ReadRecords(strings.NewReader(string(AppendRecord(nil, 0, &js))))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}

	src := &ReplaySource{hand: Right, frames: frames, cursor: -1, loop: true}
	for i := 0; i < 5; i++ {
		src.Latch()
		if _, ok := src.TryGetJointPose(Palm, Right); !ok {
			t.Fatalf("tick %d: expected looping replay to keep the hand visible", i)
		}
	}
}

func TestDecodeTrackerLine(t *testing.T) {
	line := `{"hands":[{"handedness":"Right","joints":[{"joint":2,"position":[1,2,3],"rotation":[0,0,0,1]}]}]}`

	hands, err := decodeTrackerLine([]byte(line))
	if err != nil {
		t.Fatalf("decodeTrackerLine() error = %v", err)
	}

	js, ok := hands[Right]
	if !ok {
		t.Fatal("expected right hand")
	}
	p, ok := js.Get(Palm)
	if !ok || p.Position.Z != 3 || p.Rotation.W != 1 {
		t.Errorf("unexpected palm pose %+v (resolved=%v)", p, ok)
	}

	if _, err := decodeTrackerLine([]byte(`{"hands":[{"handedness":"both"}]}`)); err == nil {
		t.Error("expected error for invalid handedness")
	}
}

const rightPalmLine = `{"hands":[{"handedness":"right","joints":[{"joint":2,"position":[%d,0,0],"rotation":[0,0,0,1]}]}]}` + "\n"

func waitFrames(t *testing.T, s *ProcessSource, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Frames() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d frames, have %d", n, s.Frames())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProcessSource_LatchesLatestFrame(t *testing.T) {
	s := newProcessSource()
	r, w := io.Pipe()
	go s.read(r)

	fmt.Fprintf(w, rightPalmLine, 1)
	fmt.Fprint(w, "not json\n")
	fmt.Fprintf(w, rightPalmLine, 2)
	waitFrames(t, s, 2)

	if _, ok := s.TryGetJointPose(Palm, Right); ok {
		t.Error("expected nothing before Latch")
	}

	s.Latch()
	p, ok := s.TryGetJointPose(Palm, Right)
	if !ok {
		t.Fatal("expected palm after Latch")
	}
	if p.Position.X != 2 {
		t.Errorf("expected latest frame X 2, got %f", p.Position.X)
	}
	if s.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", s.Frames())
	}

	w.Close()
	<-s.done
	s.Latch()
	if _, ok := s.TryGetJointPose(Palm, Right); ok {
		t.Error("expected no hand once the tracker output ended")
	}
}

func TestProcessSource_StaleFrame(t *testing.T) {
	s := newProcessSource()
	clock := time.Unix(100, 0)
	s.now = func() time.Time { return clock }

	r, w := io.Pipe()
	defer w.Close()
	go s.read(r)
	fmt.Fprintf(w, rightPalmLine, 1)
	waitFrames(t, s, 1)

	clock = clock.Add(StaleAfter)
	s.Latch()
	if _, ok := s.TryGetJointPose(Palm, Right); !ok {
		t.Fatal("expected palm within the staleness bound")
	}

	clock = clock.Add(time.Millisecond)
	s.Latch()
	if _, ok := s.TryGetJointPose(Palm, Right); ok {
		t.Error("expected a stalled tracker to report no hand")
	}
}

func TestProcessSource_TrackerExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	line := strings.TrimSpace(fmt.Sprintf(rightPalmLine, 1))
	s, err := NewProcessSource(Config{Hand: Right, Command: []string{"sh", "-c", "echo '" + line + "'"}})
	if err != nil {
		t.Fatalf("NewProcessSource() error = %v", err)
	}
	defer s.Close()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker output did not end")
	}
	if s.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", s.Frames())
	}

	for tick := 0; tick < 3; tick++ {
		s.Latch()
		if _, ok := s.TryGetJointPose(Palm, Right); ok {
			t.Errorf("tick %d: hand visible after the tracker exited", tick)
		}
	}
}
