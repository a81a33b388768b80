// Package cmd provides command-line interface commands for alertdesk.
package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"alertdesk/config"
	"alertdesk/core"
	"alertdesk/kvstore"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Global flags for alerts commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const (
	maxImportFileSize = 10 * 1024 * 1024 // protection against memory exhaustion
	defaultTimeout    = 5 * time.Minute
)

// validateFilePath rejects paths that traverse outside the working directory.
func validateFilePath(filename string) error {
	if strings.Contains(filename, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}
	absPath, err := filepath.Abs(filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if !strings.HasPrefix(absPath, workDir) {
		return fmt.Errorf("path escapes current directory")
	}
	return nil
}

// NewAlertsCmd creates the root alerts command with all subcommands.
func NewAlertsCmd() *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage stored alert records",
		Long: `Manage stored alert records: bulk import from CSV exports and purge of
records that no longer need to be retained.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	alertsCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	alertsCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	alertsCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	alertsCmd.AddCommand(newImportCmd())
	alertsCmd.AddCommand(newPurgeCmd())

	return alertsCmd
}

// newRecordStore builds a kvstore client from the service configuration.
func newRecordStore() (*kvstore.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := zap.NewNop().Sugar()
	return kvstore.NewClient(
		cfg.RecordStore.BaseURL,
		cfg.RecordStore.Collection,
		time.Duration(cfg.RecordStore.Timeout)*time.Second,
		logger,
	), nil
}

// newImportCmd creates the import subcommand.
func newImportCmd() *cobra.Command {
	var (
		importUser string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import alert records from a CSV export",
		Long: `Import alert records from a CSV file. The header row names the columns;
time, type and entity are required. A severity column is applied when
present, a data column is parsed as JSON, and every remaining column
becomes a field of the alert's data. Each imported record opens with a
create entry in its work log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0], importUser, dryRun)
		},
	}

	cmd.Flags().StringVar(&importUser, "user", "import", "Analyst name recorded on the create entry")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse the file without inserting records")

	return cmd
}

func runImport(filename, user string, dryRun bool) error {
	if err := validateFilePath(filename); err != nil {
		return err
	}
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", filename, err)
	}
	if info.Size() > maxImportFileSize {
		return fmt.Errorf("file too large: %d bytes (limit %d)", info.Size(), maxImportFileSize)
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", filename, err)
	}
	defer f.Close()

	records, parseErrors, err := parseAlertCSV(f, user)
	if err != nil {
		return err
	}

	if !quiet {
		infoColor.Printf("Parsed %d records (%d rows skipped)\n", len(records), len(parseErrors))
		for _, perr := range parseErrors {
			warningColor.Printf("  %v\n", perr)
		}
	}
	if dryRun {
		successColor.Println("Dry run, nothing inserted")
		return nil
	}

	store, err := newRecordStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	inserted := 0
	var insertErrors []error
	for i := range records {
		key, err := store.Insert(ctx, &records[i])
		if err != nil {
			insertErrors = append(insertErrors, fmt.Errorf("record %d: %w", i+1, err))
			continue
		}
		inserted++
		if !quiet && !outputJSON {
			fmt.Printf("  %s  %s/%s\n", key, records[i].Type, records[i].Entity)
		}
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]int{
			"inserted": inserted,
			"skipped":  len(parseErrors),
			"failed":   len(insertErrors),
		})
	}
	for _, ierr := range insertErrors {
		errorColor.Printf("  %v\n", ierr)
	}
	if len(insertErrors) > 0 {
		return fmt.Errorf("%d of %d inserts failed", len(insertErrors), len(records))
	}
	successColor.Printf("Imported %d alert records\n", inserted)
	return nil
}

// parseAlertCSV reads alert records from csv rows. The first row is the
// header. Rows missing required fields are reported, not fatal.
func parseAlertCSV(r io.Reader, user string) ([]core.AlertRecord, []error, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"time", "type", "entity"} {
		if _, ok := col[required]; !ok {
			return nil, nil, fmt.Errorf("CSV header missing required column %q", required)
		}
	}

	var (
		records     []core.AlertRecord
		parseErrors []error
		line        = 1
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		record, err := alertFromRow(col, row, user)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		records = append(records, *record)
	}
	return records, parseErrors, nil
}

// alertFromRow builds an open alert record from one CSV row, mirroring how
// records are shaped at alert creation time: data fields, a nil analyst and
// a leading create entry.
func alertFromRow(col map[string]int, row []string, user string) (*core.AlertRecord, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	eventTime, err := strconv.ParseFloat(field("time"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", field("time"))
	}
	alertType := field("type")
	entity := field("entity")
	if alertType == "" || entity == "" {
		return nil, fmt.Errorf("type and entity are required")
	}

	data := make(map[string]interface{})
	if raw := field("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("invalid data JSON: %w", err)
		}
	}
	for name, i := range col {
		switch name {
		case "time", "type", "entity", "severity", "data":
			continue
		}
		if i < len(row) && row[i] != "" {
			data[name] = row[i]
		}
	}

	return &core.AlertRecord{
		Time:     eventTime,
		Type:     alertType,
		Entity:   entity,
		Status:   core.AlertStatusOpen,
		Severity: field("severity"),
		Analyst:  nil,
		Data:     data,
		WorkLog: []core.WorkLogEntry{{
			Time:    float64(time.Now().UnixMilli()) / 1000,
			Action:  core.WorkLogActionCreate,
			Analyst: user,
			Data:    map[string]interface{}{},
		}},
	}, nil
}

// newPurgeCmd creates the purge subcommand.
func newPurgeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "purge <key>...",
		Short: "Delete alert records by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(args, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}

func runPurge(keys []string, force bool) error {
	if !force {
		warningColor.Printf("About to delete %d alert records. Continue? [y/N] ", len(keys))
		var answer string
		fmt.Scanln(&answer)
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			infoColor.Println("Aborted")
			return nil
		}
	}

	store, err := newRecordStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	deleted := 0
	var deleteErrors []error
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			deleteErrors = append(deleteErrors, fmt.Errorf("%s: %w", key, err))
			continue
		}
		deleted++
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]int{
			"deleted": deleted,
			"failed":  len(deleteErrors),
		})
	}
	for _, derr := range deleteErrors {
		errorColor.Printf("  %v\n", derr)
	}
	if len(deleteErrors) > 0 {
		return fmt.Errorf("%d of %d deletes failed", len(deleteErrors), len(keys))
	}
	successColor.Printf("Deleted %d alert records\n", deleted)
	return nil
}
