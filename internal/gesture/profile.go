package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/tracking"
)

// Kind selects how a detector encodes joints and decides.
type Kind string

const (
	// KindMotion scores a window of joint deltas and debounces firings.
	KindMotion Kind = "motion"
	// KindStatic scores a single pose every eligible tick.
	KindStatic Kind = "static"
)

// Profile configures a Detector.
type Profile struct {
	Name string
	Kind Kind
	Hand tracking.Handedness

	// FPS limits how often joints are sampled; 0 samples every tick.
	FPS int

	// Window is the number of delta frames scored at once (motion only).
	Window int

	// Joints is the number of tracked joints fed to the encoder, starting
	// at the wrist.
	Joints int

	Threshold float32

	// Positive is the class index checked by motion detectors.
	Positive int

	// None is the "no gesture" class of static detectors.
	None int

	Cooldown time.Duration

	// DisplayFor is how long detection text stays up; 0 keeps it until
	// the detector clears it.
	DisplayFor time.Duration

	// Classes holds the event name of each model output.
	Classes []string

	// Texts holds the display text of each model output.
	Texts []string
}

// MotionProfile returns the "not OK" motion detector settings.
func MotionProfile() Profile {
	return Profile{
		Name:       "motion",
		Kind:       KindMotion,
		Hand:       tracking.Right,
		FPS:        60,
		Window:     11,
		Joints:     tracking.NumJoints,
		Threshold:  0.6,
		Positive:   1,
		Cooldown:   500 * time.Millisecond,
		DisplayFor: 2 * time.Second,
		Classes:    []string{"Random", "NotOkGesture"},
		Texts:      []string{"", "NOT OK GESTURE!"},
	}
}

// StaticProfile returns the hand-pose detector settings.
func StaticProfile() Profile {
	return Profile{
		Name:      "static",
		Kind:      KindStatic,
		Hand:      tracking.Right,
		Joints:    tracking.NumJoints,
		Threshold: 0.5,
		None:      0,
		Classes:   []string{"None", "ThumbsUp", "ThumbsDown", "TwoFingers"},
		Texts:     []string{"", "Thumbs Up!", "Thumbs Down!", "Two Fingers!"},
	}
}

// Shape returns the model widths this profile needs.
func (p Profile) Shape() inference.Shape {
	s := inference.Shape{Out: len(p.Classes)}
	switch p.Kind {
	case KindMotion:
		s.In = DeltaEncoder{Joints: p.Joints}.InputWidth(p.Window)
	case KindStatic:
		s.In = PoseEncoder{Joints: p.Joints}.InputWidth()
	}
	return s
}

// Policy returns the decision policy for the profile's kind.
func (p Profile) Policy() Policy {
	if p.Kind == KindMotion {
		return ThresholdPolicy{Positive: p.Positive, Threshold: p.Threshold}
	}
	return ArgmaxPolicy{Threshold: p.Threshold, None: p.None}
}

// Text returns the display text for a class, or "" when there is none.
func (p Profile) Text(class int) string {
	if class < 0 || class >= len(p.Texts) {
		return ""
	}
	return p.Texts[class]
}

// Validate checks the profile for configuration errors.
func (p Profile) Validate() error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch p.Kind {
	case KindMotion:
		if p.Window < 1 {
			errs = append(errs, fmt.Errorf("window %d must be at least 1", p.Window))
		}
		if p.Positive < 0 || p.Positive >= len(p.Classes) {
			errs = append(errs, fmt.Errorf("positive class %d out of range", p.Positive))
		}
	case KindStatic:
		if p.None < 0 || p.None >= len(p.Classes) {
			errs = append(errs, fmt.Errorf("none class %d out of range", p.None))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", p.Kind))
	}
	if _, err := tracking.ParseHandedness(string(p.Hand)); err != nil {
		errs = append(errs, err)
	}
	if err := checkJoints(p.Joints); err != nil {
		errs = append(errs, err)
	}
	if len(p.Classes) < 2 {
		errs = append(errs, fmt.Errorf("need at least 2 classes, got %d", len(p.Classes)))
	}
	if p.Texts != nil && len(p.Texts) != len(p.Classes) {
		errs = append(errs, fmt.Errorf("%d texts for %d classes", len(p.Texts), len(p.Classes)))
	}
	if p.FPS < 0 {
		errs = append(errs, fmt.Errorf("fps %d must not be negative", p.FPS))
	}
	if p.Cooldown < 0 || p.DisplayFor < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return nil
}
