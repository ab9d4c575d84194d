package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ParseOverride decodes one override object. Unknown fields are ignored;
// every recognised field must have the right JSON type and range. Nothing is
// coerced: a quoted number or a fractional integer is rejected.
func ParseOverride(data []byte) (Override, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Override{}, invalid("persona", "must be an object")
	}

	var o Override
	var err error
	if v, ok := raw["uci"]; ok {
		if o.UCI, err = parseOptions(v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["depth"]; ok {
		if o.Depth, err = parseIntField("depth", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["pick_temperature"]; ok {
		if o.PickTemperature, err = parseFloatField("pick_temperature", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["multipv"]; ok {
		if o.MultiPV, err = parseIntField("multipv", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["mercy"]; ok {
		o.MercySet = true
		if o.Mercy, err = parseMercy(v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["endgame_depth_delta"]; ok {
		if o.EndgameDepthDelta, err = parseIntField("endgame_depth_delta", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["endgame_temp_delta"]; ok {
		if o.EndgameTempDelta, err = parseFloatField("endgame_temp_delta", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["pieces_threshold"]; ok {
		if o.PiecesThreshold, err = parseIntField("pieces_threshold", v); err != nil {
			return Override{}, err
		}
	}
	if v, ok := raw["curve"]; ok {
		o.CurveSet = true
		if o.Curve, err = parseCurve(v); err != nil {
			return Override{}, err
		}
	}

	if err := ValidateOverride(o); err != nil {
		return Override{}, err
	}
	return o, nil
}

// ValidateOverride checks the value ranges of an already typed override.
func ValidateOverride(o Override) error {
	if o.Depth != nil && *o.Depth < 1 {
		return invalid("depth", "must be >= 1")
	}
	if o.PickTemperature != nil && !isFinite(*o.PickTemperature) {
		return invalid("pick_temperature", "must be a finite number")
	}
	if o.MultiPV != nil && *o.MultiPV < 1 {
		return invalid("multipv", "must be >= 1")
	}
	if o.EndgameTempDelta != nil && !isFinite(*o.EndgameTempDelta) {
		return invalid("endgame_temp_delta", "must be a finite number")
	}
	for k, v := range o.UCI {
		if !isScalar(v) {
			return invalid("uci."+k, "must be a scalar")
		}
	}
	if o.Mercy != nil {
		if err := validateMercy(*o.Mercy); err != nil {
			return err
		}
	}
	if o.Curve != nil {
		if err := validateCurve(*o.Curve); err != nil {
			return err
		}
	}
	return nil
}

func validateMercy(m MercyPolicy) error {
	if m.MateIn != nil && *m.MateIn < 0 {
		return invalid("mercy.mate_in", "must be >= 0")
	}
	if m.MateKeepProb != nil && !isProbability(*m.MateKeepProb) {
		return invalid("mercy.mate_keep_prob", "must be between 0 and 1")
	}
	if m.EvalGapThreshold != nil && *m.EvalGapThreshold < 0 {
		return invalid("mercy.eval_gap_threshold", "must be >= 0")
	}
	if m.EvalKeepProb != nil && !isProbability(*m.EvalKeepProb) {
		return invalid("mercy.eval_keep_prob", "must be between 0 and 1")
	}
	return nil
}

func validateCurve(c RankCurve) error {
	switch c.Type {
	case CurveTable:
		if len(c.Weights) == 0 {
			return invalid("curve.weights", "must contain at least one number")
		}
		for i, w := range c.Weights {
			if !isFinite(w) || w < 0 {
				return invalid(fmt.Sprintf("curve.weights[%d]", i), "must be a non-negative number")
			}
		}
	case CurvePower:
		if !isFinite(c.Alpha) {
			return invalid("curve.alpha", "must be a finite number")
		}
	default:
		return invalid("curve.type", "must be 'table' or 'power'")
	}
	return nil
}

func parseOptions(raw json.RawMessage) (map[string]any, error) {
	if isNull(raw) {
		return nil, invalid("uci", "must be an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalid("uci", "must be an object")
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		val, err := parseScalar(v)
		if err != nil {
			return nil, invalid("uci."+k, "must be a scalar")
		}
		out[k] = val
	}
	return out, nil
}

func parseScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("not a scalar")
	}
}

func parseMercy(raw json.RawMessage) (*MercyPolicy, error) {
	if isNull(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalid("mercy", "must be an object or null")
	}
	m := &MercyPolicy{}
	var err error
	if v, ok := fields["mate_in"]; ok && !isNull(v) {
		if m.MateIn, err = parseIntField("mercy.mate_in", v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields["mate_keep_prob"]; ok && !isNull(v) {
		if m.MateKeepProb, err = parseFloatField("mercy.mate_keep_prob", v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields["eval_gap_threshold"]; ok && !isNull(v) {
		if m.EvalGapThreshold, err = parseIntField("mercy.eval_gap_threshold", v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields["eval_keep_prob"]; ok && !isNull(v) {
		if m.EvalKeepProb, err = parseFloatField("mercy.eval_keep_prob", v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseCurve(raw json.RawMessage) (*RankCurve, error) {
	if isNull(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalid("curve", "must be an object or null")
	}
	var typ string
	if v, ok := fields["type"]; !ok || json.Unmarshal(v, &typ) != nil {
		return nil, invalid("curve.type", "must be a string")
	}
	c := &RankCurve{Type: CurveType(typ)}
	switch c.Type {
	case CurveTable:
		v, ok := fields["weights"]
		if !ok {
			return nil, invalid("curve.weights", "must be provided for table type")
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil || items == nil {
			return nil, invalid("curve.weights", "must be a list")
		}
		c.Weights = make([]float64, 0, len(items))
		for i, item := range items {
			w, err := parseFloatField(fmt.Sprintf("curve.weights[%d]", i), item)
			if err != nil {
				return nil, err
			}
			c.Weights = append(c.Weights, *w)
		}
	case CurvePower:
		v, ok := fields["alpha"]
		if !ok {
			return nil, invalid("curve.alpha", "must be provided for power type")
		}
		alpha, err := parseFloatField("curve.alpha", v)
		if err != nil {
			return nil, err
		}
		c.Alpha = *alpha
	default:
		return nil, invalid("curve.type", "must be 'table' or 'power'")
	}
	return c, nil
}

func parseIntField(field string, raw json.RawMessage) (*int, error) {
	n, ok := jsonNumber(raw)
	if !ok {
		return nil, invalid(field, "must be an integer")
	}
	i, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil, invalid(field, "must be an integer")
		}
		i = int64(f)
	}
	return intPtr(int(i)), nil
}

func parseFloatField(field string, raw json.RawMessage) (*float64, error) {
	n, ok := jsonNumber(raw)
	if !ok {
		return nil, invalid(field, "must be a number")
	}
	f, err := n.Float64()
	if err != nil || !isFinite(f) {
		return nil, invalid(field, "must be a finite number")
	}
	return floatPtr(f), nil
}

// jsonNumber accepts only a bare JSON number literal.
func jsonNumber(raw json.RawMessage) (json.Number, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' || isNull(trimmed) {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	n, ok := v.(json.Number)
	return n, ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, int, int64, float64:
		return true
	default:
		return false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isProbability(f float64) bool {
	return isFinite(f) && f >= 0 && f <= 1
}
