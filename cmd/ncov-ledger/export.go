// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/ncov-ledger/internal/derive"
	"github.com/pdiddy/ncov-ledger/internal/export"
	"github.com/pdiddy/ncov-ledger/internal/ledger"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger as a dated series",
	Long: `Export writes every record of the ledger, oldest first, with the
derived and non-provincial columns filled in. Formats are csv, table, yaml
and json.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format := cfg.Export.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = types.ExportFormat(f)
	}
	path := cfg.Export.Path
	if p, _ := cmd.Flags().GetString("out"); p != "" {
		path = p
	}

	store, err := ledger.NewSQLiteStore(cfg.Data)
	if err != nil {
		return err
	}
	defer store.Close()

	views, err := export.Load(cmd.Context(), store)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "creating %s", path)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, views); err != nil {
		return err
	}
	logger.Info("exported ledger")
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Print one day of the ledger",
	Long: `Show prints every column for one day, given as YYYY-MM-DD or MM-DD in the
configured year, followed by the bulletins the day was built from.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0], cfg.Year)
	if err != nil {
		return err
	}

	store, err := ledger.NewSQLiteStore(cfg.Data)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	rec, err := store.Get(ctx, day)
	if errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("no record for %s", day.Format("2006-01-02"))
	}
	if err != nil {
		return err
	}
	prev, err := store.Get(ctx, day.AddDate(0, 0, -1))
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	out := cmd.OutOrStdout()
	if err := export.WriteTable(out, []derive.View{derive.NewView(*rec, prev)}); err != nil {
		return err
	}
	fmt.Fprintf(out, "national:   %s\n", rec.SourceRef)
	if rec.ProvincialRef != "" {
		fmt.Fprintf(out, "provincial: %s\n", rec.ProvincialRef)
	}
	fmt.Fprintf(out, "updated:    %s\n", rec.UpdatedAt.Format(time.RFC3339))
	return nil
}

// parseDay accepts YYYY-MM-DD, or MM-DD in year.
func parseDay(s string, year int) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or MM-DD", s)
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func init() {
	exportCmd.Flags().String("format", "", "output format: csv, table, yaml, json (default from config, csv)")
	exportCmd.Flags().String("out", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
}
