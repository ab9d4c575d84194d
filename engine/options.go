package engine

import (
	"sort"
	"strings"
)

type optionSetting struct {
	Name  string
	Value string
}

// parseOptionDefault reads an "option name <id> type <t> default <x> ..."
// line from the handshake. ok is false for options without a default, such
// as buttons.
func parseOptionDefault(line string) (name, def string, ok bool) {
	rest, found := strings.CutPrefix(line, "option name ")
	if !found {
		return "", "", false
	}
	name, tail, found := strings.Cut(rest, " type ")
	if !found || name == "" {
		return "", "", false
	}
	fields := strings.Fields(tail)
	for i, f := range fields {
		if f != "default" {
			continue
		}
		var val []string
		for _, v := range fields[i+1:] {
			if v == "min" || v == "max" || v == "var" {
				break
			}
			val = append(val, v)
		}
		if len(val) == 0 {
			return "", "", false
		}
		return name, strings.Join(val, " "), true
	}
	return "", "", false
}

// planOptions lists the setoption commands that move an engine from applied
// to want. Options applied earlier but absent from want go back to their
// advertised default; options the engine never advertised are left as they
// are. MultiPV is managed by the caller and skipped here.
func planOptions(want map[string]any, applied, defaults map[string]string) []optionSetting {
	keys := make([]string, 0, len(want))
	requested := make(map[string]bool, len(want))
	for k, v := range want {
		if strings.EqualFold(k, "MultiPV") || formatOption(v) == "" {
			continue
		}
		keys = append(keys, k)
		requested[strings.ToLower(k)] = true
	}
	sort.Strings(keys)

	var plan []optionSetting
	for _, k := range keys {
		if v := formatOption(want[k]); applied[k] != v {
			plan = append(plan, optionSetting{Name: k, Value: v})
		}
	}

	stale := make([]string, 0, len(applied))
	for k := range applied {
		if !requested[strings.ToLower(k)] && !strings.EqualFold(k, "MultiPV") {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	for _, k := range stale {
		def, ok := defaults[strings.ToLower(k)]
		if !ok || applied[k] == def {
			continue
		}
		plan = append(plan, optionSetting{Name: k, Value: def})
	}
	return plan
}
