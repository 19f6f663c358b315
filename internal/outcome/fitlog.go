package outcome

// FitPoint is one validation scoring taken during training.
type FitPoint struct {
	Batch int     `json:"batch"`
	Score float64 `json:"score"`
}

// FitLog is the ordered, append-only record of validation scores from a
// training run.
type FitLog struct {
	Points []FitPoint `json:"points"`
}

// Append records a point. Points arrive in batch order during training.
func (l *FitLog) Append(p FitPoint) {
	l.Points = append(l.Points, p)
}

// Len returns the number of recorded points.
func (l *FitLog) Len() int { return len(l.Points) }

// Last returns the most recent point.
func (l *FitLog) Last() (FitPoint, bool) {
	if len(l.Points) == 0 {
		return FitPoint{}, false
	}
	return l.Points[len(l.Points)-1], true
}

// Best returns the point with the lowest validation score.
func (l *FitLog) Best() (FitPoint, bool) {
	if len(l.Points) == 0 {
		return FitPoint{}, false
	}
	best := l.Points[0]
	for _, p := range l.Points[1:] {
		if p.Score < best.Score {
			best = p
		}
	}
	return best, true
}
