package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/compliance"
	"recordguard-hq/recordguard/pkg/quality"
)

var reportFlags struct {
	file    string
	output  string
	context contextFlags
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate quality and compliance reports for a data set",
}

var reportQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Score a data set across the quality dimensions",
	Long: `Score every record of a data set and print the average per dimension,
the grade distribution and the dimensions falling below their threshold.

Example:
  recordguard report quality -f accounts.json -t Account`,
	RunE: runQualityReport,
}

var reportComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Validate a data set and report compliance violations",
	Long: `Validate every record of a data set, then aggregate the compliance audit
trail into a report with remediation deadlines.

Example:
  recordguard report compliance -f contacts.json -t Contact -u u1 --jurisdiction EU --consent given`,
	RunE: runComplianceReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportQualityCmd, reportComplianceCmd)

	reportCmd.PersistentFlags().StringVarP(&reportFlags.file, "file", "f", "-", "records file, - for stdin")
	reportCmd.PersistentFlags().StringVarP(&reportFlags.output, "output", "o", "text", "output format: text, json, csv")
	reportFlags.context.register(reportQualityCmd)
	reportFlags.context.register(reportComplianceCmd)
}

func runQualityReport(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(reportFlags.output)
	if err != nil {
		return err
	}
	vctx, err := reportFlags.context.build()
	if err != nil {
		return err
	}
	records, err := readRecords(reportFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := a.Engine.GenerateQualityReport(cmd.Context(), records, vctx.EntityType)
	if err != nil {
		return cli.NewCommandError("report quality", err)
	}
	table := qualityTable{report}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintln(cmd.ErrOrStderr(), table)
	}
	return nil
}

func runComplianceReport(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(reportFlags.output)
	if err != nil {
		return err
	}
	vctx, err := reportFlags.context.build()
	if err != nil {
		return err
	}
	records, err := readRecords(reportFlags.file, cmd.InOrStdin())
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
	if _, err := validateAll(ctx, a.Engine, records, vctx, a.Config.Engine.BatchSize, nil); err != nil {
		return cli.NewCommandError("report compliance", err)
	}

	jurisdiction := ""
	if vctx.Compliance != nil {
		jurisdiction = vctx.Compliance.Jurisdiction
	}
	report := a.Engine.GenerateComplianceReport(vctx.EntityType, jurisdiction)
	table := complianceTable{&report}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintln(cmd.ErrOrStderr(), table)
	}
	return nil
}

// qualityTable renders a quality report as one row per dimension.
type qualityTable struct {
	*quality.Report
}

func (t qualityTable) Header() []string {
	return []string{"DIMENSION", "AVERAGE", "BELOW THRESHOLD", "THRESHOLD"}
}

func (t qualityTable) Rows() [][]string {
	issues := make(map[quality.Dimension]quality.Issue, len(t.Issues))
	for _, is := range t.Issues {
		issues[is.Dimension] = is
	}
	dims := append(append([]quality.Dimension{}, quality.Dimensions...), quality.Overall)
	rows := make([][]string, 0, len(dims))
	for _, d := range dims {
		row := []string{string(d), formatScore(t.Averages.Score(d)), "0", "-"}
		if is, ok := issues[d]; ok {
			row[2] = strconv.Itoa(is.Affected)
			row[3] = formatScore(is.Threshold)
		}
		rows = append(rows, row)
	}
	return rows
}

func (t qualityTable) String() string {
	return fmt.Sprintf("%s: %d records, overall %s (%s)", t.EntityType, t.Records,
		formatScore(t.Averages.Overall), quality.Grade(t.Averages.Overall))
}

// complianceTable renders a compliance report as one row per violation.
type complianceTable struct {
	*compliance.Report
}

func (t complianceTable) Header() []string {
	return []string{"CODE", "SEVERITY", "FRAMEWORKS", "FIELD", "ENTITY", "DUE BY"}
}

func (t complianceTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Violations))
	for _, v := range t.Violations {
		rows = append(rows, []string{
			v.Code,
			string(v.Severity),
			strings.Join(v.Frameworks, ","),
			v.Field,
			v.EntityID,
			v.DueBy.Format(time.RFC3339),
		})
	}
	return rows
}

func (t complianceTable) String() string {
	return fmt.Sprintf("%s: %s, %d evaluations, %d violations", t.EntityType, t.Status, t.Evaluations, len(t.Violations))
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
