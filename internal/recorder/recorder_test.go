package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

const tick = 20 * time.Millisecond

func TestNextPath(t *testing.T) {
	dir := t.TempDir()

	path, err := NextPath(dir, tracking.Right, 60, "wave")
	if err != nil {
		t.Fatalf("NextPath() error = %v", err)
	}
	if filepath.Base(path) != "right_hand_60fps_wave_1.txt" {
		t.Errorf("unexpected first name %q", filepath.Base(path))
	}

	for _, name := range []string{
		"right_hand_60fps_wave_1.txt",
		"right_hand_60fps_wave_3.txt",
		"right_hand_60fps_fist_1.txt",
		"left_hand_60fps_wave_1.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	// Two matching files give n=3, which exists, so the next free is 4.
	path, err = NextPath(dir, tracking.Right, 60, "wave")
	if err != nil {
		t.Fatalf("NextPath() error = %v", err)
	}
	if filepath.Base(path) != "right_hand_60fps_wave_4.txt" {
		t.Errorf("unexpected name %q", filepath.Base(path))
	}
}

func TestSession_WritesVisibleTicks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	src := tracking.NewMockSource(tracking.Right)

	s, err := Open(Config{Dir: dir, Hand: tracking.Right, Gesture: "wave", FPS: 50}, src, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Hidden ticks still advance the clock but write nothing.
	s.ProcessTick(tick)
	s.ProcessTick(tick)

	src.SetJoints(tracking.OpenHand(tracking.Vec3{}))
	for i := 0; i < 3; i++ {
		if err := s.ProcessTick(tick); err != nil {
			t.Fatalf("ProcessTick() error = %v", err)
		}
	}

	if s.Frames() != 3 {
		t.Errorf("expected 3 frames, got %d", s.Frames())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "60 | ") {
		t.Errorf("expected first timestamp 60ms, got %q", lines[0][:10])
	}

	frames, err := tracking.ReadRecords(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if !frames[0].Complete() {
		t.Error("expected recorded frame to hold every joint")
	}
}

func TestSession_Throttle(t *testing.T) {
	src := tracking.NewMockSource(tracking.Right)
	src.SetJoints(tracking.OpenHand(tracking.Vec3{}))

	s, err := Open(Config{Dir: t.TempDir(), Gesture: "wave", FPS: 25, Throttle: true}, src, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 25fps is one line per 40ms, every second 20ms tick.
	for i := 0; i < 10; i++ {
		s.ProcessTick(tick)
	}
	if s.Frames() != 5 {
		t.Errorf("expected 5 frames, got %d", s.Frames())
	}
}

func TestSession_Registry(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	src := tracking.NewMockSource(tracking.Left)
	src.SetJoints(tracking.OpenHand(tracking.Vec3{}))

	s, err := Open(Config{Dir: t.TempDir(), Hand: tracking.Left, Gesture: "fist", FPS: 60}, src, st.Recordings())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.ProcessTick(tick)
	s.ProcessTick(tick)
	s.Close()
	s.Close()

	recs, err := st.Recordings().List("fist")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(recs))
	}
	if recs[0].Path != s.Path() || recs[0].Hand != "left" || recs[0].Frames != 2 || recs[0].FinishedAt == nil {
		t.Errorf("unexpected recording %+v", recs[0])
	}
}

func TestOpen_Errors(t *testing.T) {
	src := tracking.NewMockSource(tracking.Right)

	if _, err := Open(Config{Dir: t.TempDir()}, src, nil); err == nil {
		t.Error("expected error for missing gesture label")
	}
	if _, err := Open(Config{Dir: t.TempDir(), Gesture: "x", FPS: -1}, src, nil); err == nil {
		t.Error("expected error for negative fps")
	}
}
