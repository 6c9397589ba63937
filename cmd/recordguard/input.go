package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"recordguard-hq/recordguard/pkg/app"
	"recordguard-hq/recordguard/pkg/validation"
)

// readRecords loads records from path, or from stdin when path is "-".
// JSON input may be one object, an array of objects or newline-delimited
// objects. Files ending in .yaml or .yml hold a YAML list of records.
func readRecords(path string, stdin io.Reader) ([]validation.Record, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var records []validation.Record
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return records, nil
	}
	return decodeJSONRecords(data)
}

func decodeJSONRecords(data []byte) ([]validation.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("no records in input")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))

	if trimmed[0] == '[' {
		var records []validation.Record
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return records, nil
	}

	var records []validation.Record
	for {
		var rec validation.Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid JSON: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// contextFlags describe the validation context shared by every record of
// a command invocation.
type contextFlags struct {
	file         string
	entityType   string
	operation    string
	userID       string
	roles        []string
	permissions  []string
	sessionID    string
	ipAddress    string
	jurisdiction string
	consent      string
	lawfulBasis  string
	purposes     []string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.file, "context-file", "", "YAML or JSON file holding the validation context")
	fl.StringVarP(&f.entityType, "entity-type", "t", "", "entity type of the records")
	fl.StringVar(&f.operation, "operation", "", "operation: create, update, delete, read, save (default create)")
	fl.StringVarP(&f.userID, "user", "u", "", "acting user id")
	fl.StringSliceVar(&f.roles, "roles", nil, "roles of the acting user")
	fl.StringSliceVar(&f.permissions, "permissions", nil, "permissions of the acting user")
	fl.StringVar(&f.sessionID, "session", "", "session id")
	fl.StringVar(&f.ipAddress, "ip", "", "client IP address")
	fl.StringVar(&f.jurisdiction, "jurisdiction", "", "jurisdiction for compliance checks (EU, US-CA, ...)")
	fl.StringVar(&f.consent, "consent", "", "consent status: given, withdrawn, pending")
	fl.StringVar(&f.lawfulBasis, "lawful-basis", "", "lawful basis for processing")
	fl.StringSliceVar(&f.purposes, "purposes", nil, "processing purposes")
}

// build merges the context file with flag values. Flags win.
func (f *contextFlags) build() (*validation.Context, error) {
	vctx := &validation.Context{}
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON and the context carries yaml tags.
		if err := yaml.Unmarshal(data, vctx); err != nil {
			return nil, fmt.Errorf("failed to parse context file: %w", err)
		}
	}

	if f.entityType != "" {
		vctx.EntityType = f.entityType
	}
	if f.operation != "" {
		vctx.Operation = validation.Operation(strings.ToLower(f.operation))
	}
	if vctx.Operation == "" {
		vctx.Operation = validation.OperationCreate
	}
	if f.userID != "" {
		vctx.UserID = f.userID
	}

	if f.userID != "" || len(f.roles) > 0 || len(f.permissions) > 0 || f.sessionID != "" || f.ipAddress != "" {
		if vctx.Security == nil {
			vctx.Security = &validation.SecurityContext{}
		}
		sec := vctx.Security
		if len(f.roles) > 0 {
			sec.Roles = f.roles
		}
		if len(f.permissions) > 0 {
			sec.Permissions = f.permissions
		}
		if f.sessionID != "" {
			sec.SessionID = f.sessionID
		}
		if f.ipAddress != "" {
			sec.IPAddress = f.ipAddress
		}
	}

	if vctx.Security != nil && vctx.Security.UserID == "" {
		vctx.Security.UserID = vctx.UserID
	}

	if f.jurisdiction != "" || f.consent != "" || f.lawfulBasis != "" || len(f.purposes) > 0 {
		if vctx.Compliance == nil {
			vctx.Compliance = &validation.ComplianceContext{}
		}
		comp := vctx.Compliance
		if f.jurisdiction != "" {
			comp.Jurisdiction = f.jurisdiction
		}
		if f.consent != "" {
			comp.ConsentStatus = validation.ConsentStatus(strings.ToLower(f.consent))
		}
		if f.lawfulBasis != "" {
			comp.LawfulBasis = f.lawfulBasis
		}
		if len(f.purposes) > 0 {
			comp.ProcessingPurposes = f.purposes
		}
	}

	if vctx.EntityType == "" {
		return nil, errors.New("an entity type is required (--entity-type or context file)")
	}
	return vctx, nil
}

// newOfflineApp builds an App for one-shot commands. Logs go to stderr
// and stay at warn level unless --verbose is set.
func newOfflineApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.Logging.Writer = cmd.ErrOrStderr()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	} else {
		cfg.Telemetry.Logging.Level = "warn"
	}
	cfg.Schema.Watch = false
	return app.New(cfg, app.WithVersion(Version))
}

func closeApp(a *app.App) {
	_ = a.Close(context.Background())
}
