package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/engine"
	"recordguard-hq/recordguard/pkg/validation"
)

var validateFlags struct {
	file     string
	output   string
	progress bool
	context  contextFlags
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate records",
	Long: `Validate records through the full pipeline and print one result per record.

Input is a JSON object, a JSON array, newline-delimited JSON or (for .yaml
and .yml files) a YAML list. Every record shares the context given by flags
or --context-file.

The command exits with status 2 when any record fails validation.

Examples:
  # Validate a file of accounts
  recordguard validate -f accounts.json -t Account -u u1 --roles agent --permissions '*'

  # Validate NDJSON from stdin as CSV
  cat contacts.ndjson | recordguard validate -t Contact -u u1 -o csv

  # Full results as JSON, context from a file
  recordguard validate -f leads.json --context-file ctx.yaml -o json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "-", "records file, - for stdin")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
	validateCmd.Flags().BoolVar(&validateFlags.progress, "progress", false, "report progress on stderr")
	validateFlags.context.register(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.output)
	if err != nil {
		return err
	}
	vctx, err := validateFlags.context.build()
	if err != nil {
		return err
	}
	records, err := readRecords(validateFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	var progress cli.BatchProgress
	if validateFlags.progress {
		progress = cli.NewBatchProgress(cmd.ErrOrStderr())
	}
	results, err := validateAll(ctx, a.Engine, records, vctx, a.Config.Engine.BatchSize, progress)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	report := newValidationReport(results)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintln(cmd.ErrOrStderr(), report)
	}
	if report.Invalid > 0 {
		return &cli.InvalidRecordsError{Invalid: report.Invalid, Total: len(results)}
	}
	return nil
}

// validateAll runs records through the engine one batch at a time so that
// progress advances and a shutdown signal stops between batches.
func validateAll(ctx context.Context, eng *engine.Engine, records []validation.Record, vctx *validation.Context, batchSize int, progress cli.BatchProgress) ([]*validation.Result, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	if progress != nil {
		progress.Start(len(records))
	}

	results := make([]*validation.Result, 0, len(records))
	for start := 0; start < len(records); start += batchSize {
		if ctx.Err() != nil {
			if progress != nil {
				progress.Abort(cli.ErrCanceled)
			}
			return nil, cli.ErrCanceled
		}
		end := min(start+batchSize, len(records))
		items := make([]engine.Item, 0, end-start)
		for _, rec := range records[start:end] {
			items = append(items, engine.Item{Record: rec, Context: vctx})
		}
		batch := eng.ValidateBatch(ctx, items)
		results = append(results, batch...)
		if progress != nil {
			valid := 0
			for _, r := range batch {
				if r.Valid() {
					valid++
				}
			}
			progress.Advance(valid, len(batch)-valid)
		}
	}
	if progress != nil {
		progress.Finish()
	}
	return results, nil
}

// recordResult is one line of validate output.
type recordResult struct {
	Index  int                `json:"index"`
	Valid  bool               `json:"valid"`
	Result *validation.Result `json:"result"`
}

// validationReport is printed by the validate command.
type validationReport struct {
	Total   int            `json:"total"`
	Valid   int            `json:"valid"`
	Invalid int            `json:"invalid"`
	Results []recordResult `json:"results"`
}

func newValidationReport(results []*validation.Result) *validationReport {
	r := &validationReport{Total: len(results), Results: make([]recordResult, 0, len(results))}
	for i, res := range results {
		valid := res.Valid()
		if valid {
			r.Valid++
		} else {
			r.Invalid++
		}
		r.Results = append(r.Results, recordResult{Index: i, Valid: valid, Result: res})
	}
	return r
}

// Header implements cli.Table.
func (r *validationReport) Header() []string {
	return []string{"INDEX", "VALID", "ERRORS", "WARNINGS", "FIRST ISSUE"}
}

// Rows implements cli.Table.
func (r *validationReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Results))
	for _, rr := range r.Results {
		var nErr, nWarn int
		if rr.Result != nil {
			nErr, nWarn = len(rr.Result.Errors), len(rr.Result.Warnings)
		}
		rows = append(rows, []string{
			strconv.Itoa(rr.Index),
			strconv.FormatBool(rr.Valid),
			strconv.Itoa(nErr),
			strconv.Itoa(nWarn),
			firstIssue(rr.Result),
		})
	}
	return rows
}

func (r *validationReport) String() string {
	return fmt.Sprintf("%d records: %d valid, %d invalid", r.Total, r.Valid, r.Invalid)
}

func firstIssue(res *validation.Result) string {
	if res == nil {
		return ""
	}
	if len(res.Errors) > 0 {
		e := res.Errors[0]
		return issueText(e.Code, e.Field, e.Message)
	}
	if len(res.Warnings) > 0 {
		w := res.Warnings[0]
		return issueText(w.Code, w.Field, w.Message)
	}
	return ""
}

func issueText(code, field, message string) string {
	var b strings.Builder
	b.WriteString(code)
	if field != "" {
		b.WriteString(" ")
		b.WriteString(field)
	}
	if message != "" {
		b.WriteString(": ")
		b.WriteString(message)
	}
	return b.String()
}
