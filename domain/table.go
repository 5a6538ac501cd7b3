package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reserved table columns.
const (
	IDColumn    = "id"
	ValidColumn = "valid"
	ScoreColumn = "score"
)

// Suffixes of the per-output prediction columns written for candidates.
const (
	PredictionSuffix = "_pred"
	StdSuffix        = "_sd"
)

// ReadExperiments parses a CSV table of experiments. The header must name
// every domain input; output columns are optional and empty output cells
// mean "not observed". Unknown columns are rejected. Every row is validated
// against the domain.
func ReadExperiments(r io.Reader, d *Domain) ([]Experiment, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Reason: "table is empty"}
		}

		return nil, fmt.Errorf("read table header: %w", err)
	}

	seen := make(map[string]struct{}, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		header[i] = col

		if _, dup := seen[col]; dup {
			return nil, validationErrorf(col, "duplicate column")
		}

		seen[col] = struct{}{}

		if col == IDColumn || col == ValidColumn {
			continue
		}

		if _, ok := d.Input(col); ok {
			continue
		}

		if _, ok := d.Output(col); ok {
			continue
		}

		return nil, validationErrorf(col, "unknown column")
	}

	for _, f := range d.inputs {
		if _, ok := seen[f.Key()]; !ok {
			return nil, validationErrorf(f.Key(), "missing input column")
		}
	}

	var out []Experiment

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read table row %d: %w", line, err)
		}

		e, err := d.parseRow(header, record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		if err := d.ValidateExperiment(e); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		out = append(out, e)
	}

	return out, nil
}

func (d *Domain) parseRow(header, record []string) (Experiment, error) {
	e := Experiment{Inputs: Assignment{}, Outputs: map[string]float64{}}

	for i, col := range header {
		cell := strings.TrimSpace(record[i])

		switch col {
		case IDColumn:
			e.ID = cell

			continue
		case ValidColumn:
			if cell == "" {
				continue
			}

			valid, err := strconv.ParseBool(cell)
			if err != nil {
				return e, validationErrorf(col, "expected a boolean, got %q", cell)
			}

			e.Excluded = !valid

			continue
		}

		if f, ok := d.Input(col); ok {
			if Categories(f) != nil {
				e.Inputs[col] = Label(cell)

				continue
			}

			x, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return e, validationErrorf(col, "expected a number, got %q", cell)
			}

			e.Inputs[col] = Number(x)

			continue
		}

		if cell == "" {
			continue
		}

		y, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return e, validationErrorf(col, "expected a number, got %q", cell)
		}

		e.Outputs[col] = y
	}

	return e, nil
}

// WriteExperiments writes experiments in the layout ReadExperiments reads.
func WriteExperiments(w io.Writer, d *Domain, experiments []Experiment) error {
	cw := csv.NewWriter(w)

	header := append([]string{IDColumn}, d.InputKeys()...)
	header = append(header, d.OutputKeys()...)
	header = append(header, ValidColumn)

	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range experiments {
		row := []string{e.ID}
		row = append(row, inputCells(d, e.Inputs)...)

		for _, k := range d.OutputKeys() {
			if e.HasOutput(k) {
				row = append(row, formatFloat(e.Outputs[k]))
			} else {
				row = append(row, "")
			}
		}

		row = append(row, strconv.FormatBool(!e.Excluded))

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteCandidates writes proposals: one column per input, then
// <output>_pred and <output>_sd per output and a score column when the
// candidates carry them.
func WriteCandidates(w io.Writer, d *Domain, candidates []Candidate) error {
	cw := csv.NewWriter(w)

	withPredictions, withScore := false, false

	for _, c := range candidates {
		withPredictions = withPredictions || len(c.Predictions) > 0
		withScore = withScore || c.Score != nil
	}

	header := d.InputKeys()

	if withPredictions {
		for _, k := range d.OutputKeys() {
			header = append(header, k+PredictionSuffix, k+StdSuffix)
		}
	}

	if withScore {
		header = append(header, ScoreColumn)
	}

	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range candidates {
		row := inputCells(d, c.Inputs)

		if withPredictions {
			for _, k := range d.OutputKeys() {
				p, ok := c.Predictions[k]
				if !ok {
					row = append(row, "", "")

					continue
				}

				row = append(row, formatFloat(p.Mean), formatFloat(p.Std))
			}
		}

		if withScore {
			if c.Score != nil {
				row = append(row, formatFloat(*c.Score))
			} else {
				row = append(row, "")
			}
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func inputCells(d *Domain, a Assignment) []string {
	row := make([]string, 0, len(d.inputs))
	for _, k := range d.InputKeys() {
		v, ok := a[k]
		if !ok {
			row = append(row, "")

			continue
		}

		row = append(row, v.String())
	}

	return row
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
