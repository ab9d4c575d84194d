package match

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chess-persona/persona"
	"chess-persona/rules"
	"chess-persona/selection"
)

// Reasons a simulated game stopped.
const (
	ReasonGameOver  = "game_over"
	ReasonMaxMoves  = "max_moves_reached"
	ReasonEngineErr = "engine_failed"
)

const DefaultMaxMoves = 200

// SimulationConfig describes one persona-vs-persona game.
type SimulationConfig struct {
	White      string
	Black      string
	EngineTime time.Duration
	MaxMoves   int
	// Seed, when set, seeds ply i with Seed+i so the game can be replayed.
	Seed       *int64
	GameNumber int
}

// SimulationResult is a finished simulated game.
type SimulationResult struct {
	GameNumber  int      `json:"game_number"`
	White       string   `json:"white"`
	Black       string   `json:"black"`
	Moves       []string `json:"moves"`
	Result      string   `json:"result"`
	Reason      string   `json:"reason"`
	Termination string   `json:"termination,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Blunders    int      `json:"blunders"`
	Fallbacks   int      `json:"fallbacks"`
	PGN         string   `json:"pgn"`
}

func (c *SimulationConfig) normalize(profiles selection.ProfileResolver) error {
	for _, name := range []string{c.White, c.Black} {
		if _, err := profiles.Resolve(name); err != nil {
			return err
		}
	}
	c.White = persona.NormalizeName(c.White)
	c.Black = persona.NormalizeName(c.Black)
	if c.MaxMoves <= 0 {
		c.MaxMoves = DefaultMaxMoves
	}
	if c.EngineTime <= 0 {
		c.EngineTime = persona.DefaultEngineTime
	}
	if c.GameNumber <= 0 {
		c.GameNumber = 1
	}
	return nil
}

// Simulate plays one game between two personas on a private session. An
// engine failure ends the game with ReasonEngineErr rather than an error;
// only bad configuration and cancellation are returned as errors.
func (m *Manager) Simulate(ctx context.Context, cfg SimulationConfig) (*SimulationResult, error) {
	if m.searcher == nil {
		return nil, ErrNoEngine
	}
	if err := cfg.normalize(m.profiles); err != nil {
		return nil, err
	}

	m.mu.Lock()
	sessionSeed := m.rng.Int63()
	m.mu.Unlock()
	if cfg.Seed != nil {
		sessionSeed = *cfg.Seed
	}
	id := fmt.Sprintf("sim-%d", cfg.GameNumber)
	s := NewSession(id, m.profiles, m.searcher, sessionSeed, m.logger)

	res := &SimulationResult{
		GameNumber: cfg.GameNumber,
		White:      cfg.White,
		Black:      cfg.Black,
		Reason:     ReasonMaxMoves,
		Seed:       cfg.Seed,
	}

	for i := 0; i < cfg.MaxMoves; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := s.State()
		if st.Outcome.Over {
			res.Reason = ReasonGameOver
			break
		}
		name := cfg.White
		if st.SideToMove == rules.Black {
			name = cfg.Black
		}
		var seed *int64
		if cfg.Seed != nil {
			v := *cfg.Seed + int64(i)
			seed = &v
		}

		mv, err := s.EngineMove(ctx, EngineMoveRequest{Persona: name, EngineTime: cfg.EngineTime, Seed: seed})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("simulation engine failure",
				zap.Int("game", cfg.GameNumber), zap.Int("ply", i), zap.Error(err))
			res.Reason = ReasonEngineErr
			break
		}
		res.Moves = append(res.Moves, mv.Move)
		if mv.Fallback {
			res.Fallbacks++
		}
		if mv.Selection != nil && mv.Selection.RawBlunder {
			res.Blunders++
		}
	}
	if res.Reason == ReasonMaxMoves && s.State().Outcome.Over {
		res.Reason = ReasonGameOver
	}

	outcome := s.State().Outcome
	res.Result = outcome.Result
	res.Termination = string(outcome.Termination)
	if res.Moves == nil {
		res.Moves = []string{}
	}

	tags := [][2]string{
		{"Event", "Persona Simulation"},
		{"White", cfg.White},
		{"Black", cfg.Black},
		{"WhitePersona", cfg.White},
		{"BlackPersona", cfg.Black},
		{"GameNumber", strconv.Itoa(cfg.GameNumber)},
	}
	if cfg.Seed != nil {
		tags = append(tags, [2]string{"Seed", strconv.FormatInt(*cfg.Seed, 10)})
	}
	if res.Termination != "" {
		tags = append(tags, [2]string{"Termination", res.Termination})
	} else {
		tags = append(tags, [2]string{"Termination", res.Reason})
	}
	tags = append(tags, [2]string{"Result", res.Result})

	s.mu.Lock()
	res.PGN = s.game.PGN(tags)
	s.mu.Unlock()
	return res, nil
}

// BatchConfig runs Count games with the same pairing.
type BatchConfig struct {
	SimulationConfig
	Count       int
	Concurrency int
}

// BatchSummary tallies a batch.
type BatchSummary struct {
	Games      int `json:"games"`
	WhiteWins  int `json:"white_wins"`
	BlackWins  int `json:"black_wins"`
	Draws      int `json:"draws"`
	Unfinished int `json:"unfinished"`
	Errors     int `json:"errors"`
	Plies      int `json:"plies"`
}

// Add records one game.
func (b *BatchSummary) Add(r *SimulationResult) {
	b.Games++
	b.Plies += len(r.Moves)
	switch r.Result {
	case "1-0":
		b.WhiteWins++
	case "0-1":
		b.BlackWins++
	case "1/2-1/2":
		b.Draws++
	default:
		if r.Reason == ReasonEngineErr {
			b.Errors++
		} else {
			b.Unfinished++
		}
	}
}

// RunBatch plays the games in parallel, bounded by Concurrency. Results are
// returned in game order. Game k (0-based) uses base seed Seed+k*MaxMoves so
// per-move seeds never repeat across games.
func (m *Manager) RunBatch(ctx context.Context, cfg BatchConfig) ([]*SimulationResult, BatchSummary, error) {
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if err := cfg.SimulationConfig.normalize(m.profiles); err != nil {
		return nil, BatchSummary{}, err
	}

	results := make([]*SimulationResult, cfg.Count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for k := 0; k < cfg.Count; k++ {
		game := cfg.SimulationConfig
		game.GameNumber = k + 1
		if cfg.Seed != nil {
			v := *cfg.Seed + int64(k*cfg.MaxMoves)
			game.Seed = &v
		}
		g.Go(func() error {
			r, err := m.Simulate(gctx, game)
			if err != nil {
				return fmt.Errorf("game %d: %w", game.GameNumber, err)
			}
			results[game.GameNumber-1] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BatchSummary{}, err
	}

	var sum BatchSummary
	for _, r := range results {
		sum.Add(r)
	}
	m.logger.Info("batch finished",
		zap.String("white", cfg.White), zap.String("black", cfg.Black),
		zap.Int("games", sum.Games), zap.Int("white_wins", sum.WhiteWins),
		zap.Int("black_wins", sum.BlackWins), zap.Int("draws", sum.Draws))
	return results, sum, nil
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
