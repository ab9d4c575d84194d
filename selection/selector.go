package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chess-persona/persona"
)

// ErrRequestFailed is returned when the search engine errors or yields no
// usable candidates. The selector never retries.
var ErrRequestFailed = errors.New("search request failed")

// ProfileResolver yields the effective profile for a persona name.
type ProfileResolver interface {
	Resolve(name string) (persona.Profile, error)
}

// Request is one move-selection call.
type Request struct {
	Position Position
	Persona  string

	// Hints replace the profile's base depth/temperature before the phase
	// adjustment is applied.
	DepthHint       *int
	TemperatureHint *float64

	// BlunderThreshold overrides the threshold resolved from the profile.
	BlunderThreshold *int

	// Seed reseeds RNG before sampling when set.
	Seed     *int64
	MoveTime time.Duration

	RNG    *RNG
	Budget *BlunderBudget
}

// Selection is the chosen move plus how it was chosen.
type Selection struct {
	Move          string      `json:"move"`
	SelectedScore int         `json:"selected_score"`
	BestScore     int         `json:"best_score"`
	Blunder       bool        `json:"blunder"`
	RawBlunder    bool        `json:"raw_blunder"`
	Corrected     bool        `json:"corrected"`
	Deterministic bool        `json:"deterministic"`
	Scored        bool        `json:"scored"`
	Persona       string      `json:"persona"`
	Depth         int         `json:"depth"`
	Temperature   float64     `json:"temperature"`
	Endgame       bool        `json:"endgame"`
	Candidates    []Candidate `json:"candidates,omitempty"`

	// BudgetRemaining is the persona's blunder allowance after this call;
	// -1 when no budget was attached.
	BudgetRemaining int `json:"budget_remaining"`
}

// Selector runs the persona move-selection pipeline.
type Selector struct {
	profiles ProfileResolver
	searcher Searcher
	logger   *zap.Logger
}

func NewSelector(profiles ProfileResolver, searcher Searcher, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		profiles: profiles,
		searcher: searcher,
		logger:   logger.Named("selector"),
	}
}

// SelectMove picks a move for the persona in the given position.
func (s *Selector) SelectMove(ctx context.Context, req Request) (*Selection, error) {
	profile, err := s.profiles.Resolve(req.Persona)
	if err != nil {
		return nil, err
	}
	if req.Position == nil {
		return nil, fmt.Errorf("%w: no position", ErrRequestFailed)
	}
	if req.DepthHint != nil {
		profile.Depth = *req.DepthHint
	}
	if req.TemperatureHint != nil {
		profile.PickTemperature = *req.TemperatureHint
	}

	pieces := req.Position.NonKingPieceCount()
	depth, temperature := AdjustForPhase(profile, pieces)
	width := profile.MultiPV
	if width < 1 || temperature <= 0 {
		width = 1
	}

	if req.Budget != nil {
		req.Budget.Ensure(profile.Name)
	}

	sreq := SearchRequest{
		FEN:      req.Position.FEN(),
		Depth:    depth,
		MultiPV:  width,
		MoveTime: req.MoveTime,
		Options:  profile.UCI,
	}
	res, err := s.searcher.Search(ctx, sreq)
	if err != nil {
		s.logger.Warn("search failed", zap.String("persona", profile.Name), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrRequestFailed, profile.Name, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s: empty response", ErrRequestFailed, profile.Name)
	}
	cands := ScoreCandidates(res.Lines)
	scored := len(cands) > 0
	if !scored && res.SingleBest && len(res.Lines) > 0 && res.Lines[0].Move != "" {
		// single-best engines may not report a score
		cands = []Candidate{{Move: res.Lines[0].Move}}
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: %s: no usable candidates", ErrRequestFailed, profile.Name)
	}

	sel := &Selection{
		Persona:         profile.Name,
		Depth:           depth,
		Temperature:     temperature,
		Endgame:         IsEndgame(profile, pieces),
		Scored:          scored,
		Candidates:      cands,
		BudgetRemaining: -1,
	}

	if res.SingleBest {
		sel.Move = cands[0].Move
		sel.SelectedScore = cands[0].Score
		sel.BestScore = cands[0].Score
		sel.Deterministic = true
		s.fillBudget(sel, req.Budget)
		return sel, nil
	}

	enforce := req.Budget != nil && req.Budget.Enforce(profile.Name)
	rng := req.RNG
	if rng == nil {
		rng = NewRNG(req.Seed)
	} else if req.Seed != nil {
		rng.Reseed(req.Seed)
	}

	picked, _ := Sample(SampleInput{
		Candidates:       cands,
		Temperature:      temperature,
		Mercy:            profile.Mercy,
		Curve:            profile.Curve,
		EnforceNoBlunder: enforce,
		BlunderThreshold: ResolveBlunderThreshold(req.BlunderThreshold, profile.Mercy),
	}, rng)

	if picked.RawBlunder && req.Budget != nil {
		req.Budget.Consume(profile.Name)
	}

	sel.Move = picked.Move
	sel.SelectedScore = picked.SelectedScore
	sel.BestScore = picked.BestScore
	sel.Blunder = picked.Blunder
	sel.RawBlunder = picked.RawBlunder
	sel.Corrected = picked.Corrected
	sel.Deterministic = picked.Weights == nil
	s.fillBudget(sel, req.Budget)

	s.logger.Debug("move selected",
		zap.String("persona", profile.Name),
		zap.String("move", sel.Move),
		zap.Int("selected", sel.SelectedScore),
		zap.Int("best", sel.BestScore),
		zap.Bool("blunder", sel.RawBlunder),
		zap.Bool("corrected", sel.Corrected),
		zap.Int("depth", depth),
		zap.Float64("temperature", temperature),
	)
	return sel, nil
}

func (s *Selector) fillBudget(sel *Selection, b *BlunderBudget) {
	if b == nil {
		return
	}
	if n, ok := b.Remaining(sel.Persona); ok {
		sel.BudgetRemaining = n
	}
}
