package tracking

// Source supplies joint poses for the current frame.
type Source interface {
	// TryGetJointPose returns the pose of a joint for the given hand.
	// The boolean is false when the joint cannot be resolved this frame.
	TryGetJointPose(j Joint, hand Handedness) (Pose, bool)
}

// Latcher is implemented by sources that buffer frames asynchronously.
// Latch freezes the most recent frame so that every query made during
// one tick sees the same data.
type Latcher interface {
	Latch()
}

// Config holds options shared by tracking sources.
type Config struct {
	// Hand is the tracked hand.
	Hand Handedness

	// Command is the external tracker command used by ProcessSource.
	Command []string

	// ReplayPath is the recording file played back by ReplaySource.
	ReplayPath string

	// Loop restarts a replay when it reaches the end.
	Loop bool
}

// DefaultConfig returns a Config tracking the right hand.
func DefaultConfig() Config {
	return Config{
		Hand: Right,
	}
}
