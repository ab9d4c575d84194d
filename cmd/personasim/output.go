package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"chess-persona/match"
)

var csvHeader = []string{"file", "white", "black", "result", "moves", "seed", "reason"}

type csvRow struct {
	File   string
	White  string
	Black  string
	Result string
	Moves  int
	Seed   string
	Reason string
}

func (r csvRow) record() []string {
	return []string{r.File, r.White, r.Black, r.Result, strconv.Itoa(r.Moves), r.Seed, r.Reason}
}

// savePGNs writes one PGN per game into dir and returns the summary rows in
// game order along with the number of bytes written.
func savePGNs(dir string, results []*match.SimulationResult, now time.Time) ([]csvRow, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create output dir: %w", err)
	}
	stamp := now.Format("20060102_150405")
	rows := make([]csvRow, 0, len(results))
	written := 0
	for _, r := range results {
		name := fmt.Sprintf("sim_%s_vs_%s_%s_%d.pgn", r.White, r.Black, stamp, r.GameNumber)
		path := filepath.Join(dir, name)
		body := r.PGN
		if len(body) > 0 && body[len(body)-1] != '\n' {
			body += "\n"
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, written, fmt.Errorf("write %s: %w", name, err)
		}
		written += len(body)

		seed := ""
		if r.Seed != nil {
			seed = strconv.FormatInt(*r.Seed, 10)
		}
		rows = append(rows, csvRow{
			File:   path,
			White:  r.White,
			Black:  r.Black,
			Result: r.Result,
			Moves:  len(r.Moves),
			Seed:   seed,
			Reason: r.Reason,
		})
	}
	return rows, written, nil
}

// appendCSV appends rows to path, writing the header only when the file is new.
func appendCSV(path string, rows []csvRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	_, err := os.Stat(path)
	fresh := errors.Is(err, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if fresh {
		_ = w.Write(csvHeader)
	}
	for _, r := range rows {
		_ = w.Write(r.record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}
