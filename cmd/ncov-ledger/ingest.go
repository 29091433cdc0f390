// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pdiddy/ncov-ledger/internal/discover"
	"github.com/pdiddy/ncov-ledger/internal/fetch"
	"github.com/pdiddy/ncov-ledger/internal/ledger"
	"github.com/pdiddy/ncov-ledger/internal/page"
	"github.com/pdiddy/ncov-ledger/internal/pipeline"
	"github.com/pdiddy/ncov-ledger/internal/secrets"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape bulletins into the ledger",
	Long: `Ingest fetches bulletins, extracts their counts and stores them in the
ledger. Use "national" to walk the national index, "provincial" to merge the
provincial bulletins, or "file" to ingest a saved page.`,
}

// --- national subcommand ---

var ingestNationalCmd = &cobra.Command{
	Use:   "national",
	Short: "Discover and ingest national bulletins",
	Long: `National walks the national bulletin index from the newest page back to
the first bulletin of the series, or to the newest bulletin already in the
ledger, and ingests every new bulletin oldest first.`,
	Args: cobra.NoArgs,
	RunE: runIngestNational,
}

func runIngestNational(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	crawler := discover.NewCrawler(rt.session, cfg.Discovery, logger.Named("discover"))
	summary, err := rt.engine.RunNational(cmd.Context(), crawler)
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return err
	}
	return failures(summary)
}

// --- provincial subcommand ---

var ingestProvincialCmd = &cobra.Command{
	Use:   "provincial [urls...]",
	Short: "Merge provincial bulletins into national records",
	Long: `Provincial fetches provincial bulletins in the given order and merges
their counts into the national record of the same day. Without arguments the
configured bulletin list is used. A bulletin that disagrees with the national
record stops the run and nothing is written for it.`,
	RunE: runIngestProvincial,
}

func runIngestProvincial(cmd *cobra.Command, args []string) error {
	urls := args
	if len(urls) == 0 {
		urls = cfg.Provincial.URLs
	}
	if len(urls) == 0 {
		return fmt.Errorf("no provincial bulletins given and none configured")
	}

	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, err := rt.engine.RunProvincial(cmd.Context(), urls)
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return err
	}
	return failures(summary)
}

// --- file subcommand ---

var ingestFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Ingest a bulletin page saved to disk",
	Long: `File ingests one saved bulletin page. National pages are the default;
pass --provincial for a provincial page. The reference recorded for the page
is --ref, or the file URL of the page when --ref is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestFile,
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	provincial, _ := cmd.Flags().GetBool("provincial")
	ref, _ := cmd.Flags().GetString("ref")

	path := args[0]
	doc, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "reading %s", path)
	}
	if ref == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return eris.Wrapf(err, "resolving %s", path)
		}
		ref = "file://" + filepath.ToSlash(abs)
	}

	rt, err := openRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	var rep pipeline.Report
	if provincial {
		body, err := page.ParseProvincial(doc)
		if err != nil {
			return err
		}
		rep, err = rt.engine.ProcessProvincial(cmd.Context(), ref, body)
		if err != nil {
			return err
		}
	} else {
		title, body, err := page.ParseNational(doc)
		if err != nil {
			return err
		}
		rep, err = rt.engine.ProcessNational(cmd.Context(), ref, title, body)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if rep.Date.IsZero() {
		fmt.Fprintf(out, "%s: %s\n", rep.Status, ref)
	} else {
		fmt.Fprintf(out, "%s %s: %s\n", rep.Status, rep.Date.Format("2006-01-02"), ref)
	}
	for _, m := range rep.Misses {
		fmt.Fprintf(out, "  missing %s\n", m.Indicator)
	}
	return nil
}

func init() {
	ingestFileCmd.Flags().Bool("provincial", false, "the page is a provincial bulletin")
	ingestFileCmd.Flags().String("ref", "", "reference to record for the page (default: file URL)")

	ingestCmd.AddCommand(ingestNationalCmd)
	ingestCmd.AddCommand(ingestProvincialCmd)
	ingestCmd.AddCommand(ingestFileCmd)
	rootCmd.AddCommand(ingestCmd)
}

// runtime holds the collaborators one ingest command needs.
type runtime struct {
	store   *ledger.SQLiteStore
	session fetch.Session
	engine  *pipeline.Engine
}

// openRuntime opens the ledger and, when withFetcher is set, the configured
// fetch backend.
func openRuntime(withFetcher bool) (*runtime, error) {
	store, err := ledger.NewSQLiteStore(cfg.Data)
	if err != nil {
		return nil, err
	}
	rt := &runtime{store: store}

	var f fetch.Fetcher
	if withFetcher {
		sess, err := fetch.New(cfg.Fetch, secrets.FromMap(loadedSecrets), logger.Named("fetch"))
		if err != nil {
			store.Close()
			return nil, err
		}
		rt.session = sess
		f = sess
	}
	rt.engine = pipeline.New(store, f, logger, cfg.Year)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.session != nil {
		_ = rt.session.Close()
	}
	_ = rt.store.Close()
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "%d bulletin(s): %d ingested, %d skipped, %d failed, %d missing value(s)\n",
		s.Total(), s.Ingested, s.Skipped, s.Failed, s.Misses)
}

func failures(s pipeline.Summary) error {
	if s.Failed > 0 {
		return fmt.Errorf("%d bulletin(s) failed", s.Failed)
	}
	return nil
}
