package gesture

// Decision is the outcome of scoring one input.
type Decision struct {
	Fire  bool
	Class int
	Score float32
}

// Policy turns a score vector into a Decision.
type Policy interface {
	Decide(scores []float32) Decision
}

// ThresholdPolicy fires when the positive class scores above Threshold.
type ThresholdPolicy struct {
	Positive  int
	Threshold float32
}

// Decide checks the positive class score.
func (p ThresholdPolicy) Decide(scores []float32) Decision {
	if p.Positive < 0 || p.Positive >= len(scores) {
		return Decision{Class: p.Positive}
	}
	s := scores[p.Positive]
	return Decision{Fire: s > p.Threshold, Class: p.Positive, Score: s}
}

// ArgmaxPolicy fires for the best scoring class when it beats Threshold and
// is not the None class.
type ArgmaxPolicy struct {
	Threshold float32
	None      int
}

// Decide picks the best class.
func (p ArgmaxPolicy) Decide(scores []float32) Decision {
	i, s := Argmax(scores)
	if i < 0 {
		return Decision{Class: p.None}
	}
	return Decision{Fire: s > p.Threshold && i != p.None, Class: i, Score: s}
}

// Argmax returns the index and value of the largest score. Ties go to the
// lowest index. It returns -1 for an empty slice.
func Argmax(scores []float32) (int, float32) {
	if len(scores) == 0 {
		return -1, 0
	}
	best, top := 0, scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > top {
			best, top = i, scores[i]
		}
	}
	return best, top
}
