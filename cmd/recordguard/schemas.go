package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/schema"
)

var schemasFlags struct {
	output  string
	version string
	dir     string
}

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Inspect and lint entity schemas",
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered entity schemas",
	Long: `List the schemas registered at startup: the built-in core schemas and
those loaded from schema.dir.`,
	Args: cobra.NoArgs,
	RunE: runSchemasList,
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <entity-type>",
	Short: "Print the JSON Schema of an entity type",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasShow,
}

var schemasLintCmd = &cobra.Command{
	Use:   "lint [file...]",
	Short: "Validate schema definition files",
	Long: `Parse schema definition files and check fields, kinds and rule expressions.

Examples:
  # Lint files
  recordguard schemas lint schemas/widget.yaml schemas/order.yaml

  # Lint a directory
  recordguard schemas lint --dir schemas/`,
	RunE: runSchemasLint,
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	schemasCmd.AddCommand(schemasListCmd, schemasShowCmd, schemasLintCmd)

	schemasCmd.PersistentFlags().StringVarP(&schemasFlags.output, "output", "o", "text", "output format: text, json, csv")
	schemasShowCmd.Flags().StringVar(&schemasFlags.version, "version", "", "schema version (default latest)")
	schemasLintCmd.Flags().StringVarP(&schemasFlags.dir, "dir", "d", "", "directory of schema files")
}

// schemaRow summarizes one registered schema.
type schemaRow struct {
	EntityType  string `json:"entity_type"`
	Version     string `json:"version"`
	Fields      int    `json:"fields"`
	Required    int    `json:"required"`
	PII         int    `json:"pii"`
	Rules       int    `json:"rules"`
	Description string `json:"description,omitempty"`
}

type schemaList []schemaRow

func (l schemaList) Header() []string {
	return []string{"ENTITY TYPE", "VERSION", "FIELDS", "REQUIRED", "PII", "RULES", "DESCRIPTION"}
}

func (l schemaList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{
			s.EntityType,
			s.Version,
			strconv.Itoa(s.Fields),
			strconv.Itoa(s.Required),
			strconv.Itoa(s.PII),
			strconv.Itoa(s.Rules),
			s.Description,
		})
	}
	return rows
}

func runSchemasList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(schemasFlags.output)
	if err != nil {
		return err
	}
	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	reg := a.Registry
	var list schemaList
	for _, t := range reg.Types() {
		for _, v := range reg.Versions(t) {
			s, ok := reg.Get(t, v)
			if !ok {
				continue
			}
			list = append(list, schemaRow{
				EntityType:  s.EntityType,
				Version:     s.Version,
				Fields:      len(s.Fields),
				Required:    len(s.RequiredFields()),
				PII:         len(s.PIIFields()),
				Rules:       s.RuleCount(),
				Description: s.Metadata.Description,
			})
		}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), list)
}

func runSchemasShow(cmd *cobra.Command, args []string) error {
	a, err := newOfflineApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	entityType := args[0]
	if !a.Registry.Has(entityType, schemasFlags.version) {
		if schemasFlags.version != "" {
			entityType = schema.Key(entityType, schemasFlags.version)
		}
		return fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, entityType)
	}
	s, _ := a.Registry.Get(entityType, schemasFlags.version)
	return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), s.JSONSchema())
}

// lintResult is the outcome of linting one schema file.
type lintResult struct {
	File       string `json:"file"`
	Valid      bool   `json:"valid"`
	EntityType string `json:"entity_type,omitempty"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

type lintResults []lintResult

func (l lintResults) Header() []string {
	return []string{"FILE", "VALID", "SCHEMA", "ERROR"}
}

func (l lintResults) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		key := ""
		if r.EntityType != "" {
			key = schema.Key(r.EntityType, r.Version)
		}
		rows = append(rows, []string{r.File, strconv.FormatBool(r.Valid), key, r.Error})
	}
	return rows
}

func runSchemasLint(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(schemasFlags.output)
	if err != nil {
		return err
	}
	files := append([]string{}, args...)
	if schemasFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(schemasFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list schema files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return errors.New("no schema files given (pass files or --dir)")
	}

	results := make(lintResults, 0, len(files))
	invalid := 0
	seen := make(map[string]string)
	for _, file := range files {
		r := lintResult{File: file, Valid: true}
		s, err := schema.LoadFile(file)
		switch {
		case err != nil:
			r.Valid = false
			r.Error = lintMessage(err)
		default:
			r.EntityType, r.Version = s.EntityType, s.Version
			if prev, dup := seen[s.Key()]; dup {
				r.Valid = false
				r.Error = "duplicates " + prev
			}
			seen[s.Key()] = file
		}
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d schema files are invalid", invalid, len(files))
	}
	return nil
}

// lintMessage strips the path prefix LoadError adds; the file is its own
// column.
func lintMessage(err error) string {
	var le *schema.LoadError
	if errors.As(err, &le) {
		if errors.Is(le.Cause, os.ErrNotExist) {
			return "file not found"
		}
		return strings.TrimSpace(le.Cause.Error())
	}
	return err.Error()
}
