package persona

import (
	"sort"
	"time"
)

// DefaultEngineTime is the search budget used for persona play when no
// explicit engine time is supplied.
const DefaultEngineTime = 350 * time.Millisecond

func tableCurve(weights ...float64) *RankCurve {
	return &RankCurve{Type: CurveTable, Weights: weights}
}

func mercy(mateIn int, mateKeep float64, gap int, evalKeep float64) *MercyPolicy {
	return &MercyPolicy{
		MateIn:           intPtr(mateIn),
		MateKeepProb:     floatPtr(mateKeep),
		EvalGapThreshold: intPtr(gap),
		EvalKeepProb:     floatPtr(evalKeep),
	}
}

func uciOptions(elo, skill int) map[string]any {
	return map[string]any{
		"UCI_LimitStrength": true,
		"UCI_Elo":           elo,
		"Skill Level":       skill,
		"MultiPV":           10,
	}
}

// builtinProfiles returns a fresh copy of the five persona tiers, weakest first.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"grasshopper": {
			Name:              "grasshopper",
			UCI:               uciOptions(450, 0),
			Depth:             4,
			PickTemperature:   2.5,
			MultiPV:           10,
			Mercy:             mercy(4, 0.03, 300, 0.15),
			EndgameDepthDelta: -2,
			EndgameTempDelta:  0.3,
			PiecesThreshold:   10,
			Curve:             tableCurve(1, 2, 6, 10, 14, 14, 10, 6, 4, 3),
		},
		"student": {
			Name:              "student",
			UCI:               uciOptions(750, 2),
			Depth:             6,
			PickTemperature:   1.6,
			MultiPV:           10,
			Mercy:             mercy(3, 0.15, 400, 0.30),
			EndgameDepthDelta: -2,
			EndgameTempDelta:  0.3,
			PiecesThreshold:   10,
			Curve:             tableCurve(8, 10, 10, 8, 6, 4, 2, 1, 1, 1),
		},
		"adept": {
			Name:              "adept",
			UCI:               uciOptions(1175, 5),
			Depth:             8,
			PickTemperature:   1.2,
			MultiPV:           10,
			Mercy:             mercy(2, 0.55, 525, 0.60),
			EndgameDepthDelta: -1,
			EndgameTempDelta:  0.3,
			PiecesThreshold:   10,
			Curve:             tableCurve(16, 14, 10, 6, 4, 2, 1, 1, 1, 1),
		},
		"ninja": {
			Name:              "ninja",
			UCI:               uciOptions(1450, 8),
			Depth:             10,
			PickTemperature:   0.7,
			MultiPV:           10,
			Mercy:             mercy(1, 0.90, 700, 0.85),
			EndgameDepthDelta: -1,
			EndgameTempDelta:  0.3,
			PiecesThreshold:   10,
			Curve:             tableCurve(28, 20, 12, 6, 3, 1, 1, 1, 1, 1),
		},
		"sensei": {
			Name:              "sensei",
			UCI:               uciOptions(1700, 12),
			Depth:             14,
			PickTemperature:   0,
			MultiPV:           10,
			Mercy:             nil,
			EndgameDepthDelta: -1,
			EndgameTempDelta:  0,
			PiecesThreshold:   10,
			Curve:             tableCurve(64, 16, 4, 1, 1, 1, 1, 1, 1, 1),
		},
	}
}

var blunderAllowance = map[string]int{
	"grasshopper": 3,
	"student":     2,
	"adept":       1,
	"ninja":       1,
	"sensei":      0,
}

// DefaultBlunderAllowance is the number of self-aware mistakes a persona may
// make per game. Unknown names get zero.
func DefaultBlunderAllowance(name string) int {
	return blunderAllowance[NormalizeName(name)]
}

// Preset is a user-facing opponent entry mapped onto a persona.
type Preset struct {
	Key         string        `json:"key"`
	DisplayName string        `json:"display_name"`
	Persona     string        `json:"engine_persona,omitempty"`
	EngineTime  time.Duration `json:"-"`
}

var presets = []Preset{
	{Key: "human", DisplayName: "Human"},
	{Key: "grasshopper", DisplayName: "Grasshopper", Persona: "grasshopper", EngineTime: 250 * time.Millisecond},
	{Key: "student", DisplayName: "Student", Persona: "student", EngineTime: 300 * time.Millisecond},
	{Key: "adept", DisplayName: "Adept", Persona: "adept", EngineTime: 350 * time.Millisecond},
	{Key: "ninja", DisplayName: "Ninja", Persona: "ninja", EngineTime: 400 * time.Millisecond},
	{Key: "sensei", DisplayName: "Sensei", Persona: "sensei", EngineTime: 500 * time.Millisecond},
}

// Presets returns the opponent list in display order.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by key, case-insensitively.
func LookupPreset(key string) (Preset, bool) {
	key = NormalizeName(key)
	for _, p := range presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}

func sortedNames(m map[string]Profile) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
