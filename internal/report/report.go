// Package report writes run results to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"sqlstress/internal/runner"
)

// WriteJSON writes the full result as indented JSON.
func WriteJSON(w io.Writer, res *runner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func WriteYAML(w io.Writer, res *runner.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}

// WriteRowsCSV writes the sample rows. Rows may differ in width; the header
// covers the widest one.
func WriteRowsCSV(w io.Writer, res *runner.Result) error {
	cw := csv.NewWriter(w)

	width := 0
	for _, row := range res.SampleRows {
		width = max(width, len(row))
	}
	header := []string{"row"}
	for i := 1; i <= width; i++ {
		header = append(header, "col"+strconv.Itoa(i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, row := range res.SampleRows {
		record := append([]string{strconv.Itoa(i + 1)}, row...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteErrorsCSV(w io.Writer, res *runner.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sample", "error"}); err != nil {
		return err
	}
	for i, e := range res.ErrorSamples {
		if err := cw.Write([]string{strconv.Itoa(i + 1), e}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes <prefix>.json, <prefix>.yaml, <prefix>_rows.csv and
// <prefix>_errors.csv and returns the paths written.
func Export(res *runner.Result, prefix string) ([]string, error) {
	files := []struct {
		path  string
		write func(io.Writer, *runner.Result) error
	}{
		{prefix + ".json", WriteJSON},
		{prefix + ".yaml", WriteYAML},
		{prefix + "_rows.csv", WriteRowsCSV},
		{prefix + "_errors.csv", WriteErrorsCSV},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := writeFile(f.path, res, f.write); err != nil {
			return written, err
		}
		written = append(written, f.path)
	}
	return written, nil
}

func writeFile(path string, res *runner.Result, write func(io.Writer, *runner.Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, res); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
