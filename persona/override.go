package persona

import (
	"encoding/json"
	"sort"
)

// Override is a partial profile layered on top of a built-in at read time.
// A nil pointer means "not present". Mercy and Curve carry an explicit Set
// flag so that a JSON null (clear the built-in value) differs from absence.
type Override struct {
	UCI               map[string]any
	Depth             *int
	PickTemperature   *float64
	MultiPV           *int
	Mercy             *MercyPolicy
	MercySet          bool
	EndgameDepthDelta *int
	EndgameTempDelta  *float64
	PiecesThreshold   *int
	Curve             *RankCurve
	CurveSet          bool
}

// IsEmpty reports whether the override carries no fields.
func (o Override) IsEmpty() bool {
	return o.UCI == nil && o.Depth == nil && o.PickTemperature == nil && o.MultiPV == nil &&
		!o.MercySet && o.EndgameDepthDelta == nil && o.EndgameTempDelta == nil &&
		o.PiecesThreshold == nil && !o.CurveSet
}

// Merge returns o with every field present in next replacing its own value.
// Nested values are replaced wholesale, never merged key by key.
func (o Override) Merge(next Override) Override {
	return o.Clone().mergeInto(next)
}

// Apply layers the override onto a base profile and returns the merged view.
func (o Override) Apply(base Profile) Profile {
	out := base.Clone()
	if o.UCI != nil {
		out.UCI = cloneOptions(o.UCI)
	}
	if o.Depth != nil {
		out.Depth = *o.Depth
	}
	if o.PickTemperature != nil {
		out.PickTemperature = *o.PickTemperature
	}
	if o.MultiPV != nil {
		out.MultiPV = *o.MultiPV
	}
	if o.MercySet {
		out.Mercy = nil
		if o.Mercy != nil {
			out.Mercy = o.Mercy.clone()
		}
	}
	if o.EndgameDepthDelta != nil {
		out.EndgameDepthDelta = *o.EndgameDepthDelta
	}
	if o.EndgameTempDelta != nil {
		out.EndgameTempDelta = *o.EndgameTempDelta
	}
	if o.PiecesThreshold != nil {
		out.PiecesThreshold = *o.PiecesThreshold
	}
	if o.CurveSet {
		out.Curve = nil
		if o.Curve != nil {
			out.Curve = o.Curve.clone()
		}
	}
	return out
}

// Clone returns a deep copy.
func (o Override) Clone() Override {
	return Override{}.mergeInto(o)
}

func (o Override) mergeInto(src Override) Override {
	out := o
	if src.UCI != nil {
		out.UCI = cloneOptions(src.UCI)
	}
	if src.Depth != nil {
		out.Depth = intPtr(*src.Depth)
	}
	if src.PickTemperature != nil {
		out.PickTemperature = floatPtr(*src.PickTemperature)
	}
	if src.MultiPV != nil {
		out.MultiPV = intPtr(*src.MultiPV)
	}
	if src.MercySet {
		out.MercySet = true
		out.Mercy = nil
		if src.Mercy != nil {
			out.Mercy = src.Mercy.clone()
		}
	}
	if src.EndgameDepthDelta != nil {
		out.EndgameDepthDelta = intPtr(*src.EndgameDepthDelta)
	}
	if src.EndgameTempDelta != nil {
		out.EndgameTempDelta = floatPtr(*src.EndgameTempDelta)
	}
	if src.PiecesThreshold != nil {
		out.PiecesThreshold = intPtr(*src.PiecesThreshold)
	}
	if src.CurveSet {
		out.CurveSet = true
		out.Curve = nil
		if src.Curve != nil {
			out.Curve = src.Curve.clone()
		}
	}
	return out
}

func (o Override) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any)
	if o.UCI != nil {
		doc["uci"] = o.UCI
	}
	if o.Depth != nil {
		doc["depth"] = *o.Depth
	}
	if o.PickTemperature != nil {
		doc["pick_temperature"] = *o.PickTemperature
	}
	if o.MultiPV != nil {
		doc["multipv"] = *o.MultiPV
	}
	if o.MercySet {
		doc["mercy"] = o.Mercy
	}
	if o.EndgameDepthDelta != nil {
		doc["endgame_depth_delta"] = *o.EndgameDepthDelta
	}
	if o.EndgameTempDelta != nil {
		doc["endgame_temp_delta"] = *o.EndgameTempDelta
	}
	if o.PiecesThreshold != nil {
		doc["pieces_threshold"] = *o.PiecesThreshold
	}
	if o.CurveSet {
		doc["curve"] = o.Curve
	}
	return json.Marshal(doc)
}

func (o *Override) UnmarshalJSON(data []byte) error {
	parsed, err := ParseOverride(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// EncodeOverrides renders the whole override set as one JSON document.
func EncodeOverrides(set map[string]Override) ([]byte, error) {
	if set == nil {
		set = map[string]Override{}
	}
	return json.MarshalIndent(set, "", "  ")
}

// DecodeOverrides parses a whole override document. Keys are normalized to
// lowercase; any malformed entry rejects the document.
func DecodeOverrides(data []byte) (map[string]Override, error) {
	out := make(map[string]Override)
	if len(data) == 0 {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalid("document", "must be an object of persona overrides")
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		o, err := ParseOverride(raw[name])
		if err != nil {
			return nil, withPersona(err, key)
		}
		out[key] = o
	}
	return out, nil
}

func cloneOptions(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
