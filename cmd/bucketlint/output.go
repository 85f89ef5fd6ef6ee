package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bucketlint/bucketlint/validator"
)

// Output formats shared by the validate and render commands
const (
	outputTable = "table"
	outputJSON  = "json"
)

func validOutput(format string) error {
	valid := []string{outputTable, outputJSON}
	for _, v := range valid {
		if format == v {
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s (must be one of: %s)",
		format, strings.Join(valid, ", "))
}

// printReport writes a finished report in the requested format
func printReport(w io.Writer, report *validator.Report, format string) error {
	if format == outputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	for _, line := range report.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
