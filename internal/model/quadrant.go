package model

// Quadrant is one of the four Eisenhower matrix buckets.
type Quadrant string

const (
	QuadrantDo       Quadrant = "do"       // urgent and important
	QuadrantSchedule Quadrant = "schedule" // important, not urgent
	QuadrantDelegate Quadrant = "delegate" // urgent, not important
	QuadrantHold     Quadrant = "hold"     // neither
)

// Quadrants lists all buckets in display order.
var Quadrants = []Quadrant{QuadrantDo, QuadrantSchedule, QuadrantDelegate, QuadrantHold}

// QuadrantFor maps the urgency/importance pair onto its bucket.
func QuadrantFor(urgent, important bool) Quadrant {
	switch {
	case urgent && important:
		return QuadrantDo
	case important:
		return QuadrantSchedule
	case urgent:
		return QuadrantDelegate
	default:
		return QuadrantHold
	}
}

// Flags returns the urgency/importance pair the bucket stands for.
// QuadrantFor(q.Flags()) == q holds for every valid bucket.
func (q Quadrant) Flags() (urgent, important bool) {
	switch q {
	case QuadrantDo:
		return true, true
	case QuadrantSchedule:
		return false, true
	case QuadrantDelegate:
		return true, false
	default:
		return false, false
	}
}

// Weight ranks buckets for urgency scoring; do outranks schedule and so on.
func (q Quadrant) Weight() int {
	switch q {
	case QuadrantDo:
		return 4
	case QuadrantSchedule:
		return 3
	case QuadrantDelegate:
		return 2
	default:
		return 1
	}
}

// Valid reports whether q is one of the four known buckets.
func (q Quadrant) Valid() bool {
	switch q {
	case QuadrantDo, QuadrantSchedule, QuadrantDelegate, QuadrantHold:
		return true
	}
	return false
}
