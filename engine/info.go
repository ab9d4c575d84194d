package engine

import (
	"strconv"
	"strings"

	"chess-persona/selection"
)

// infoLine is the part of a UCI "info" line the selector cares about.
type infoLine struct {
	Depth   int
	MultiPV int
	Score   *selection.Score
	Bound   bool
	PV      []string
}

// parseInfo reads an "info ..." line. ok is false for lines that carry no
// principal variation (currmove, string, hashfull and similar).
func parseInfo(line string) (infoLine, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return infoLine{}, false
	}
	out := infoLine{MultiPV: 1}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if v, ok := intAt(fields, i+1); ok {
				out.Depth = v
				i++
			}
		case "multipv":
			if v, ok := intAt(fields, i+1); ok {
				out.MultiPV = v
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				continue
			}
			v, err := strconv.Atoi(fields[i+2])
			if err != nil {
				continue
			}
			switch fields[i+1] {
			case "cp":
				out.Score = selection.Centipawns(v)
			case "mate":
				out.Score = selection.Mate(v)
			}
			i += 2
		case "lowerbound", "upperbound":
			out.Bound = true
		case "pv":
			out.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		case "string":
			return infoLine{}, false
		}
	}
	if len(out.PV) == 0 || out.MultiPV < 1 {
		return infoLine{}, false
	}
	return out, true
}

func intAt(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, false
	}
	return v, true
}

// bestMoveOf extracts the move from a "bestmove e2e4 ponder e7e5" line.
func bestMoveOf(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" || fields[1] == "(none)" || fields[1] == "0000" {
		return ""
	}
	return fields[1]
}

// formatOption renders a scalar engine option value the way UCI expects.
func formatOption(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
