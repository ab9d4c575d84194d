package selection

import (
	"fmt"
	"sort"
)

// MateSentinel is the comparable magnitude given to forced mates. It is above
// any realistic centipawn score so mate lines always rank first.
const MateSentinel = 100000

type ScoreKind uint8

const (
	ScoreCentipawns ScoreKind = iota
	ScoreMate
)

// Score is an engine evaluation from the mover's perspective: either a
// centipawn value or a signed mate distance (positive = mover mates).
type Score struct {
	Kind  ScoreKind
	Value int
}

func Centipawns(cp int) *Score { return &Score{Kind: ScoreCentipawns, Value: cp} }

func Mate(distance int) *Score { return &Score{Kind: ScoreMate, Value: distance} }

// Comparable maps the score onto a single centipawn-like scale. A mate
// distance of zero means the mover is already mated. Mates against the mover
// map to -MateSentinel and rank below every centipawn line.
func (s Score) Comparable() int {
	if s.Kind != ScoreMate {
		return s.Value
	}
	if s.Value > 0 {
		return MateSentinel
	}
	return -MateSentinel
}

func (s Score) String() string {
	if s.Kind == ScoreMate {
		return fmt.Sprintf("M%d", s.Value)
	}
	return fmt.Sprintf("%d", s.Value)
}

// Candidate is one normalized search line.
type Candidate struct {
	Move  string `json:"move"`
	Score int    `json:"score"`
	Mate  *int   `json:"mate,omitempty"`
}

// ScoreCandidates drops lines without a move or a score and ranks the rest
// best-first. Equal scores keep the engine's order.
func ScoreCandidates(lines []SearchLine) []Candidate {
	out := make([]Candidate, 0, len(lines))
	for _, line := range lines {
		if line.Move == "" || line.Score == nil {
			continue
		}
		c := Candidate{Move: line.Move, Score: line.Score.Comparable()}
		if line.Score.Kind == ScoreMate {
			d := line.Score.Value
			c.Mate = &d
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
