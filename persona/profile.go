package persona

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurveType selects how a RankCurve turns a candidate rank into a weight.
type CurveType string

const (
	CurveTable CurveType = "table"
	CurvePower CurveType = "power"
)

// RankCurve biases sampling toward top-ranked candidates independent of score gaps.
type RankCurve struct {
	Type    CurveType
	Weights []float64 // table: weight for rank 1..N, last entry repeats
	Alpha   float64   // power: weight(r) = 1/r^Alpha
}

func (c RankCurve) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case CurveTable:
		return json.Marshal(struct {
			Type    CurveType `json:"type"`
			Weights []float64 `json:"weights"`
		}{c.Type, c.Weights})
	case CurvePower:
		return json.Marshal(struct {
			Type  CurveType `json:"type"`
			Alpha float64   `json:"alpha"`
		}{c.Type, c.Alpha})
	default:
		return nil, fmt.Errorf("unknown curve type %q", c.Type)
	}
}

func (c RankCurve) clone() *RankCurve {
	out := c
	if c.Weights != nil {
		out.Weights = append([]float64(nil), c.Weights...)
	}
	return &out
}

// MercyPolicy softens forced mates and crushing best moves for lenient personas.
// Each rule is active only when its trigger (MateIn / EvalGapThreshold) is set.
type MercyPolicy struct {
	MateIn           *int     `json:"mate_in,omitempty"`
	MateKeepProb     *float64 `json:"mate_keep_prob,omitempty"`
	EvalGapThreshold *int     `json:"eval_gap_threshold,omitempty"`
	EvalKeepProb     *float64 `json:"eval_keep_prob,omitempty"`
}

// DefaultKeepProb applies when a rule is configured without its keep probability.
const DefaultKeepProb = 0.5

func (m MercyPolicy) MateKeep() float64 {
	if m.MateKeepProb == nil {
		return DefaultKeepProb
	}
	return *m.MateKeepProb
}

func (m MercyPolicy) EvalKeep() float64 {
	if m.EvalKeepProb == nil {
		return DefaultKeepProb
	}
	return *m.EvalKeepProb
}

func (m MercyPolicy) clone() *MercyPolicy {
	out := MercyPolicy{}
	if m.MateIn != nil {
		out.MateIn = intPtr(*m.MateIn)
	}
	if m.MateKeepProb != nil {
		out.MateKeepProb = floatPtr(*m.MateKeepProb)
	}
	if m.EvalGapThreshold != nil {
		out.EvalGapThreshold = intPtr(*m.EvalGapThreshold)
	}
	if m.EvalKeepProb != nil {
		out.EvalKeepProb = floatPtr(*m.EvalKeepProb)
	}
	return &out
}

// Profile is the effective move-selection configuration of one persona.
type Profile struct {
	Name              string         `json:"-"`
	UCI               map[string]any `json:"uci"`
	Depth             int            `json:"depth"`
	PickTemperature   float64        `json:"pick_temperature"`
	MultiPV           int            `json:"multipv"`
	Mercy             *MercyPolicy   `json:"mercy"`
	EndgameDepthDelta int            `json:"endgame_depth_delta"`
	EndgameTempDelta  float64        `json:"endgame_temp_delta"`
	PiecesThreshold   int            `json:"pieces_threshold"`
	Curve             *RankCurve     `json:"curve"`
}

// Clone returns a deep copy so callers can never mutate a built-in profile.
func (p Profile) Clone() Profile {
	out := p
	if p.UCI != nil {
		out.UCI = make(map[string]any, len(p.UCI))
		for k, v := range p.UCI {
			out.UCI[k] = v
		}
	}
	if p.Mercy != nil {
		out.Mercy = p.Mercy.clone()
	}
	if p.Curve != nil {
		out.Curve = p.Curve.clone()
	}
	return out
}

// NormalizeName lowercases and trims a persona name for lookup.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
