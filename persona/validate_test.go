package persona

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseOverrideRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"depth zero", `{"depth": 0}`, "depth"},
		{"depth fractional", `{"depth": 2.5}`, "depth"},
		{"depth quoted", `{"depth": "4"}`, "depth"},
		{"temperature string", `{"pick_temperature": "hot"}`, "pick_temperature"},
		{"multipv zero", `{"multipv": 0}`, "multipv"},
		{"mercy not object", `{"mercy": 3}`, "mercy"},
		{"mate_in negative", `{"mercy": {"mate_in": -1}}`, "mercy.mate_in"},
		{"mate keep above one", `{"mercy": {"mate_keep_prob": 1.5}}`, "mercy.mate_keep_prob"},
		{"eval keep negative", `{"mercy": {"eval_keep_prob": -0.1}}`, "mercy.eval_keep_prob"},
		{"gap negative", `{"mercy": {"eval_gap_threshold": -5}}`, "mercy.eval_gap_threshold"},
		{"endgame depth delta float", `{"endgame_depth_delta": 0.5}`, "endgame_depth_delta"},
		{"endgame temp delta bool", `{"endgame_temp_delta": true}`, "endgame_temp_delta"},
		{"pieces threshold string", `{"pieces_threshold": "ten"}`, "pieces_threshold"},
		{"curve bad type", `{"curve": {"type": "cubic"}}`, "curve.type"},
		{"curve missing type", `{"curve": {"weights": [1]}}`, "curve.type"},
		{"curve empty table", `{"curve": {"type": "table", "weights": []}}`, "curve.weights"},
		{"curve missing weights", `{"curve": {"type": "table"}}`, "curve.weights"},
		{"curve non numeric weight", `{"curve": {"type": "table", "weights": [1, "x"]}}`, "curve.weights[1]"},
		{"curve negative weight", `{"curve": {"type": "table", "weights": [1, -2]}}`, "curve.weights[1]"},
		{"curve missing alpha", `{"curve": {"type": "power"}}`, "curve.alpha"},
		{"uci not object", `{"uci": [1, 2]}`, "uci"},
		{"uci nested value", `{"uci": {"Hash": {"mb": 16}}}`, "uci.Hash"},
		{"not an object", `[1, 2, 3]`, "persona"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOverride([]byte(tt.payload))
			var inv *InvalidOverrideError
			if !errors.As(err, &inv) {
				t.Fatalf("expected InvalidOverrideError, got %v", err)
			}
			if inv.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%v)", tt.field, inv.Field, err)
			}
		})
	}
}

func TestParseOverrideAcceptsAndIgnoresUnknownFields(t *testing.T) {
	o, err := ParseOverride([]byte(`{
		"depth": 7,
		"pick_temperature": -0.5,
		"uci": {"Skill Level": 3, "UCI_LimitStrength": false, "Contempt": 1.5, "Book": null},
		"mercy": {"mate_in": 2, "eval_keep_prob": 0},
		"curve": {"type": "table", "weights": [3, 2.5, 0]},
		"endgame": {"depth_delta": 1},
		"flavor": "spicy"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *o.Depth != 7 || *o.PickTemperature != -0.5 {
		t.Fatalf("unexpected scalars: %+v", o)
	}
	if o.UCI["Skill Level"] != 3 || o.UCI["UCI_LimitStrength"] != false || o.UCI["Contempt"] != 1.5 {
		t.Fatalf("unexpected uci: %+v", o.UCI)
	}
	if !o.MercySet || *o.Mercy.MateIn != 2 || o.Mercy.MateKeepProb != nil {
		t.Fatalf("unexpected mercy: %+v", o.Mercy)
	}
	if !o.CurveSet || len(o.Curve.Weights) != 3 {
		t.Fatalf("unexpected curve: %+v", o.Curve)
	}
}

func TestOverrideJSONRoundTripKeepsExplicitNull(t *testing.T) {
	o, err := ParseOverride([]byte(`{"mercy": null, "depth": 3}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]json.RawMessage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(back["mercy"]) != "null" {
		t.Fatalf("expected explicit mercy null to survive, got %s", data)
	}
	if _, ok := back["curve"]; ok {
		t.Fatalf("absent curve must stay absent, got %s", data)
	}
}

func TestDecodeOverridesTagsPersona(t *testing.T) {
	_, err := DecodeOverrides([]byte(`{"Student": {"multipv": -1}}`))
	var inv *InvalidOverrideError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidOverrideError, got %v", err)
	}
	if inv.Persona != "student" || inv.Field != "multipv" {
		t.Fatalf("unexpected error detail: %+v", inv)
	}
}
