package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/blunderboard/internal/analysis"
)

var reportHeader = []string{
	"game", "white", "black", "result",
	"move_number", "move_uci", "best_move_uci",
	"evaluation_before", "evaluation_after", "centipawn_loss",
}

// report writes per-move rows, zstd-compressed when the path ends in .zst.
type report struct {
	file *os.File
	zw   *zstd.Encoder
	csv  *csv.Writer
}

func createReport(path string) (*report, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := &report{file: f}

	var w io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		r.zw = zw
		w = zw
	}
	r.csv = csv.NewWriter(w)

	if err := r.csv.Write(reportHeader); err != nil {
		r.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return r, nil
}

func (r *report) WriteGame(game int, headers map[string]string, moves []analysis.MoveRecord) error {
	for _, m := range moves {
		row := []string{
			strconv.Itoa(game),
			headers["White"],
			headers["Black"],
			headers["Result"],
			strconv.Itoa(m.MoveNumber),
			m.Move,
			m.BestMove,
			strconv.Itoa(m.EvalBefore),
			strconv.Itoa(m.EvalAfter),
			strconv.Itoa(m.CentipawnLoss),
		}
		if err := r.csv.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	r.csv.Flush()
	return r.csv.Error()
}

func (r *report) Close() error {
	r.csv.Flush()
	err := r.csv.Error()
	if r.zw != nil {
		if zerr := r.zw.Close(); zerr != nil && err == nil {
			err = zerr
		}
	}
	if ferr := r.file.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
