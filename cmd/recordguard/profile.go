package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/quality"
)

var profileFlags struct {
	file       string
	output     string
	entityType string
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile the fields of a data set",
	Long: `Compute per-field statistics for a data set: null and unique ratios, the
inferred type, the most frequent values and a field quality score.

Example:
  recordguard profile -f accounts.json -t Account -o csv`,
	RunE: runProfile,
}

var duplicatesFlags struct {
	file       string
	output     string
	fields     []string
	algorithms []string
	threshold  float64
	idField    string
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find likely duplicate records in a data set",
	Long: `Compare every pair of records and report pairs whose similarity reaches
the threshold. Fields are gjson paths; nested values may be compared with
paths such as address.city.

Example:
  recordguard duplicates -f contacts.json --fields firstName,lastName,email --threshold 0.85`,
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(profileCmd, duplicatesCmd)

	profileCmd.Flags().StringVarP(&profileFlags.file, "file", "f", "-", "records file, - for stdin")
	profileCmd.Flags().StringVarP(&profileFlags.output, "output", "o", "text", "output format: text, json, csv")
	profileCmd.Flags().StringVarP(&profileFlags.entityType, "entity-type", "t", "", "entity type used to weigh expected fields")

	def := quality.DefaultDuplicateConfig()
	algorithms := make([]string, 0, len(def.Algorithms))
	for _, a := range def.Algorithms {
		algorithms = append(algorithms, string(a))
	}
	duplicatesCmd.Flags().StringVarP(&duplicatesFlags.file, "file", "f", "-", "records file, - for stdin")
	duplicatesCmd.Flags().StringVarP(&duplicatesFlags.output, "output", "o", "text", "output format: text, json, csv")
	duplicatesCmd.Flags().StringSliceVar(&duplicatesFlags.fields, "fields", nil, "gjson paths to compare (default all non-identifier fields)")
	duplicatesCmd.Flags().StringSliceVar(&duplicatesFlags.algorithms, "algorithms", algorithms, "similarity algorithms: exact, levenshtein, jaccard, cosine")
	duplicatesCmd.Flags().Float64Var(&duplicatesFlags.threshold, "threshold", def.Threshold, "minimum similarity in (0, 1]")
	duplicatesCmd.Flags().StringVar(&duplicatesFlags.idField, "id-field", def.IDField, "path of the record identifier")
}

func runProfile(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(profileFlags.output)
	if err != nil {
		return err
	}
	records, err := readRecords(profileFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	profiles := a.Engine.ProfileData(records, profileFlags.entityType)
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), profileTable(profiles))
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(duplicatesFlags.output)
	if err != nil {
		return err
	}
	records, err := readRecords(duplicatesFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	dcfg := quality.DuplicateConfig{
		Fields:    duplicatesFlags.fields,
		Threshold: duplicatesFlags.threshold,
		IDField:   duplicatesFlags.idField,
	}
	for _, name := range duplicatesFlags.algorithms {
		dcfg.Algorithms = append(dcfg.Algorithms, quality.Algorithm(strings.ToLower(name)))
	}
	pairs, err := a.Engine.DetectDuplicates(records, dcfg)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), duplicateTable(pairs))
}

type profileTable []quality.FieldProfile

func (t profileTable) Header() []string {
	return []string{"FIELD", "TYPE", "TOTAL", "NULLS", "UNIQUE", "QUALITY", "TOP VALUE"}
}

func (t profileTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		top := ""
		if len(p.TopValues) > 0 {
			top = p.TopValues[0].Value + " (" + strconv.Itoa(p.TopValues[0].Count) + ")"
		}
		rows = append(rows, []string{
			p.Field,
			p.Type,
			strconv.Itoa(p.Total),
			strconv.Itoa(p.Nulls),
			strconv.Itoa(p.Unique),
			formatScore(p.Quality),
			top,
		})
	}
	return rows
}

type duplicateTable []quality.DuplicatePair

func (t duplicateTable) Header() []string {
	return []string{"LEFT", "RIGHT", "LEFT ID", "RIGHT ID", "SIMILARITY", "ALGORITHM"}
}

func (t duplicateTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{
			strconv.Itoa(p.Left),
			strconv.Itoa(p.Right),
			p.LeftID,
			p.RightID,
			strconv.FormatFloat(p.Similarity, 'f', 3, 64),
			string(p.Algorithm),
		})
	}
	return rows
}
