package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lamim/uxie/internal/jsxlint"
	"github.com/lamim/uxie/pkg/models"
)

var errInvalidComponent = errors.New("component is invalid")

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		src []byte
		err error
	)
	if args[0] == "-" {
		src, err = io.ReadAll(cmd.InOrStdin())
	} else {
		src, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read component: %w", err)
	}

	result := jsxlint.New().Validate(string(src))
	if err := printValidation(cmd.OutOrStdout(), result, jsonOutput); err != nil {
		return err
	}
	if !result.Valid {
		cmd.SilenceUsage = true
		return errInvalidComponent
	}
	return nil
}

func printValidation(w io.Writer, result models.ValidationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, d := range result.Errors {
		fmt.Fprintf(w, "error   %s\n", formatDiagnostic(d))
	}
	for _, d := range result.Warnings {
		fmt.Fprintf(w, "warning %s\n", formatDiagnostic(d))
	}
	if result.Valid {
		fmt.Fprintf(w, "OK (%d warnings)\n", len(result.Warnings))
	} else {
		fmt.Fprintf(w, "FAILED (%d errors, %d warnings)\n", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func formatDiagnostic(d models.Diagnostic) string {
	loc := "-"
	if d.Line > 0 {
		loc = fmt.Sprintf("%d:%d", d.Line, d.Column)
	}
	if d.RuleCode == "" {
		return fmt.Sprintf("%-7s %s", loc, d.Message)
	}
	return fmt.Sprintf("%-7s %s (%s)", loc, d.Message, d.RuleCode)
}
