package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"sqlstress/internal/report"
	"sqlstress/internal/runner"
)

var errNothingToExport = errors.New("no finished run to export yet")

// exportPrefix names the report files of a run exported at ts.
func exportPrefix(dir string, ts time.Time) string {
	return filepath.Join(dir, "sqlstress_report_"+ts.Format("20060102-150405"))
}

// ExportResult writes every report format for res into dir and returns a
// status line naming the files.
func ExportResult(res *runner.Result, dir string, ts time.Time) (string, error) {
	if res == nil {
		return "", errNothingToExport
	}
	base := exportPrefix(dir, ts)
	written, err := report.Export(res, base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Exported %d files to %s.{json,yaml} and %s_{rows,errors}.csv", len(written), base, base), nil
}
