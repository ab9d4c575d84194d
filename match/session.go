package match

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"chess-persona/persona"
	"chess-persona/rules"
	"chess-persona/selection"
)

var (
	ErrEngineFailed = errors.New("engine produced no move")
	ErrNoEngine     = errors.New("no search engine configured")
)

const (
	openingMoves      = 10
	openingTimeFactor = 0.6

	sharkEval     = 200
	sharkMinTemp  = 0.5
	tiltEval      = -300
	moodTempShift = 0.5

	DefaultAnalyzeTime = 500 * time.Millisecond
)

// Status is the lifecycle of a session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Players names the two sides for PGN export.
type Players struct {
	UserName     string     `json:"user_name"`
	OpponentName string     `json:"opponent_name"`
	UserSide     rules.Side `json:"user_side"`
}

func defaultPlayers() Players {
	return Players{UserName: "Player", OpponentName: "Opponent", UserSide: rules.White}
}

// Session is one game against persona-driven opponents. It owns the board,
// the blunder budget and the RNG; all methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id       string
	game     *rules.Game
	budget   *selection.BlunderBudget
	rng      *selection.RNG
	lastEval map[rules.Side]int
	status   Status
	reason   string
	result   string
	players  Players
	updated  time.Time

	profiles selection.ProfileResolver
	selector *selection.Selector
	searcher selection.Searcher
	logger   *zap.Logger
}

// NewSession starts a game from the initial position. seed drives the
// session RNG when no per-move seed is supplied.
func NewSession(id string, profiles selection.ProfileResolver, searcher selection.Searcher, seed int64, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:       id,
		game:     rules.NewGame(),
		budget:   selection.NewBlunderBudget(),
		rng:      selection.NewRNG(&seed),
		lastEval: make(map[rules.Side]int),
		status:   StatusActive,
		players:  defaultPlayers(),
		updated:  time.Now(),
		profiles: profiles,
		selector: selection.NewSelector(profiles, searcher, logger),
		searcher: searcher,
		logger:   logger.Named("session").With(zap.String("session", id)),
	}
}

func (s *Session) ID() string { return s.id }

// State is a point-in-time view of the session.
type State struct {
	ID           string         `json:"id"`
	FEN          string         `json:"fen"`
	SideToMove   rules.Side     `json:"side_to_move"`
	FullMove     int            `json:"fullmove"`
	LegalMoves   []string       `json:"legal_moves"`
	Moves        []string       `json:"moves"`
	Status       Status         `json:"status"`
	Outcome      rules.Outcome  `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	Players      Players        `json:"players"`
	BlunderQuota map[string]int `json:"blunder_budget"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		ID:           s.id,
		FEN:          s.game.FEN(),
		SideToMove:   s.game.SideToMove(),
		FullMove:     s.game.FullMoveNumber(),
		LegalMoves:   s.game.LegalMoves(),
		Moves:        s.game.MoveHistory(),
		Status:       s.status,
		Outcome:      s.game.Outcome(),
		Reason:       s.reason,
		Players:      s.players,
		BlunderQuota: s.budget.Snapshot(),
		UpdatedAt:    s.updated,
	}
}

// SetPlayers records names for the PGN headers. Empty fields keep their value.
func (s *Session) SetPlayers(p Players) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UserName != "" {
		s.players.UserName = p.UserName
	}
	if p.OpponentName != "" {
		s.players.OpponentName = p.OpponentName
	}
	if p.UserSide == rules.White || p.UserSide == rules.Black {
		s.players.UserSide = p.UserSide
	}
}

// PlayerMove applies a human move given in UCI notation.
func (s *Session) PlayerMove(uci string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return s.stateLocked(), rules.ErrGameOver
	}
	if err := s.game.Move(uci); err != nil {
		return s.stateLocked(), err
	}
	s.afterMoveLocked()
	return s.stateLocked(), nil
}

// EngineMoveRequest configures one engine reply.
type EngineMoveRequest struct {
	// Persona selects the persona pipeline; empty asks for a plain best move.
	Persona string
	// EngineTime is the search budget before opening time management.
	EngineTime time.Duration
	// Skill sets the engine's "Skill Level" for plain best-move requests.
	Skill *int
	Seed  *int64
}

// EngineMoveResult reports the move played and how it was chosen.
type EngineMoveResult struct {
	Move      string               `json:"move"`
	Selection *selection.Selection `json:"selection,omitempty"`
	Fallback  bool                 `json:"fallback"`
	MoveTime  time.Duration        `json:"move_time"`
	State     State                `json:"state"`
}

// EngineMove asks the engine, through the persona pipeline when a persona is
// given, for a reply and plays it.
func (s *Session) EngineMove(ctx context.Context, req EngineMoveRequest) (*EngineMoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded || s.game.Outcome().Over {
		return nil, rules.ErrGameOver
	}
	if s.searcher == nil {
		return nil, ErrNoEngine
	}

	moveTime := req.EngineTime
	if moveTime <= 0 {
		moveTime = persona.DefaultEngineTime
	}
	if s.game.FullMoveNumber() < openingMoves {
		moveTime = time.Duration(float64(moveTime) * openingTimeFactor)
	}
	out := &EngineMoveResult{MoveTime: moveTime}
	side := s.game.SideToMove()

	if req.Persona != "" {
		profile, err := s.profiles.Resolve(req.Persona)
		if err != nil {
			return nil, err
		}
		temp := moodTemperature(profile.PickTemperature, s.lastEval[side])
		sel, err := s.selector.SelectMove(ctx, selection.Request{
			Position:        s.game,
			Persona:         req.Persona,
			TemperatureHint: &temp,
			Seed:            req.Seed,
			RNG:             s.rng,
			Budget:          s.budget,
		})
		switch {
		case err == nil:
			if err := s.game.Move(sel.Move); err != nil {
				return nil, fmt.Errorf("play selected move: %w", err)
			}
			if sel.Scored {
				s.lastEval[side] = sel.BestScore
			}
			out.Move = sel.Move
			out.Selection = sel
			s.afterMoveLocked()
			out.State = s.stateLocked()
			return out, nil
		case errors.Is(err, selection.ErrRequestFailed):
			s.logger.Warn("persona selection failed, falling back to best move",
				zap.String("persona", req.Persona), zap.Error(err))
			out.Fallback = true
		default:
			return nil, err
		}
	}

	mv, err := s.bestMoveLocked(ctx, moveTime, req.Skill)
	if err != nil {
		return nil, err
	}
	if err := s.game.Move(mv); err != nil {
		return nil, fmt.Errorf("play best move: %w", err)
	}
	out.Move = mv
	s.afterMoveLocked()
	out.State = s.stateLocked()
	return out, nil
}

func (s *Session) bestMoveLocked(ctx context.Context, moveTime time.Duration, skill *int) (string, error) {
	req := selection.SearchRequest{FEN: s.game.FEN(), MultiPV: 1, MoveTime: moveTime}
	if skill != nil {
		req.Options = map[string]any{"Skill Level": *skill}
	}
	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEngineFailed, err)
	}
	if res != nil {
		for _, line := range res.Lines {
			if line.Move != "" && s.game.IsLegal(line.Move) {
				return line.Move, nil
			}
		}
	}
	return "", ErrEngineFailed
}

// moodTemperature nudges the sampling temperature by the engine's last view
// of the game: calmer when comfortably winning, wilder when losing badly.
func moodTemperature(base float64, lastEval int) float64 {
	t := base
	if lastEval > sharkEval && t > sharkMinTemp {
		t -= moodTempShift
		if t < 0 {
			t = 0
		}
	}
	if lastEval < tiltEval {
		t += moodTempShift
	}
	return t
}

// Reset starts a new game and clears every per-game counter.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(rules.NewGame())
	s.players = defaultPlayers()
	return s.stateLocked()
}

// SetFEN replaces the board with an arbitrary position as a new game.
func (s *Session) SetFEN(fen string) (State, error) {
	g, err := rules.FromFEN(fen)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(g)
	return s.stateLocked(), nil
}

func (s *Session) resetLocked(g *rules.Game) {
	s.game = g
	s.budget.Reset()
	s.lastEval = make(map[rules.Side]int)
	s.status = StatusActive
	s.reason = ""
	s.result = ""
	s.updated = time.Now()
}

// Resign ends the game with the given side resigning.
func (s *Session) Resign(loser rules.Side) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return s.stateLocked(), rules.ErrGameOver
	}
	s.status = StatusEnded
	s.reason = "resign"
	switch loser {
	case rules.White:
		s.result = "0-1"
	case rules.Black:
		s.result = "1-0"
	default:
		s.result = "*"
	}
	s.updated = time.Now()
	return s.stateLocked(), nil
}

func (s *Session) afterMoveLocked() {
	s.updated = time.Now()
	if o := s.game.Outcome(); o.Over {
		s.status = StatusEnded
		s.reason = string(o.Termination)
		s.result = o.Result
		s.logger.Info("game over", zap.String("result", o.Result), zap.String("termination", s.reason))
	}
}

// Analysis is an engine evaluation of a position from White's side.
type Analysis struct {
	Score        string   `json:"score,omitempty"`
	BestMove     string   `json:"best_move,omitempty"`
	Continuation []string `json:"continuation"`
}

// Analyze evaluates fen, or the current position when fen is empty, without
// playing a move.
func (s *Session) Analyze(ctx context.Context, fen string, limit time.Duration) (Analysis, error) {
	if s.searcher == nil {
		return Analysis{}, ErrNoEngine
	}
	if fen == "" {
		s.mu.Lock()
		fen = s.game.FEN()
		s.mu.Unlock()
	}
	g, err := rules.FromFEN(fen)
	if err != nil {
		return Analysis{}, err
	}
	return Analyze(ctx, s.searcher, g, limit)
}

// Analyze runs a single-line search on g and reports it from White's side.
func Analyze(ctx context.Context, searcher selection.Searcher, g *rules.Game, limit time.Duration) (Analysis, error) {
	if limit <= 0 {
		limit = DefaultAnalyzeTime
	}
	out := Analysis{Continuation: []string{}}
	res, err := searcher.Search(ctx, selection.SearchRequest{FEN: g.FEN(), MultiPV: 1, MoveTime: limit})
	if err != nil {
		return out, fmt.Errorf("analyze: %w", err)
	}
	if res == nil || len(res.Lines) == 0 {
		return out, nil
	}
	line := res.Lines[0]
	out.BestMove = line.Move
	pv := line.PV
	if len(pv) == 0 && line.Move != "" {
		pv = []string{line.Move}
	}
	if len(pv) > 3 {
		pv = pv[:3]
	}
	out.Continuation = append(out.Continuation, pv...)

	if sc := line.Score; sc != nil {
		v := sc.Value
		if g.SideToMove() == rules.Black {
			v = -v
		}
		if sc.Kind == selection.ScoreMate {
			out.Score = "M" + strconv.Itoa(v)
		} else {
			out.Score = strconv.Itoa(v)
		}
	}
	return out, nil
}

// PGN exports the game with headers naming the players by side.
func (s *Session) PGN() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	white, black := s.players.UserName, s.players.OpponentName
	if s.players.UserSide == rules.Black {
		white, black = black, white
	}
	result := s.result
	if result == "" {
		result = s.game.Outcome().Result
	}
	tags := [][2]string{
		{"Event", "Casual Game"},
		{"Date", time.Now().Format("2006.01.02")},
		{"Round", "1"},
		{"White", white},
		{"Black", black},
		{"Result", result},
	}
	if s.reason != "" {
		tags = append(tags, [2]string{"Termination", s.reason})
	}
	return s.game.PGN(tags)
}
