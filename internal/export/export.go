// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders the ledger as a dated series for downstream
// charts and reports. Export is read-only: derived columns are computed on
// the fly from stored values.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ncov-ledger/internal/derive"
	"github.com/pdiddy/ncov-ledger/internal/ledger"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

const dateHeader = "日期"

// Column is one exported series.
type Column struct {
	// Header is the human-readable column name used by CSV and table output.
	Header string

	// Key is the machine name used by YAML and JSON output.
	Key string

	Value func(derive.View) (int, bool)
}

// national lists the national indicators with their headers in export
// order.
var national = []struct {
	ind    types.Indicator
	header string
}{
	{types.TotalConfirmed, "累计确诊"},
	{types.RemainingConfirmed, "当前确诊"},
	{types.RemainingSevere, "当前重症"},
	{types.RemainingSuspected, "当前疑似"},
	{types.Cured, "治愈"},
	{types.Death, "死亡"},
	{types.NewConfirmed, "新确诊"},
	{types.NewSevere, "新重症"},
	{types.NewSuspected, "新疑似"},
	{types.NewCured, "新治愈"},
	{types.NewDeath, "新死亡"},
	{types.TotalTracked, "累计追踪"},
	{types.NewLifted, "新排除"},
	{types.RemainingQuarantined, "当前观察"},
}

const (
	provincialPrefix    = "湖北"
	nonProvincialPrefix = "非湖北"
)

// Columns returns the exported columns in order: national, provincial,
// then non-provincial.
func Columns() []Column {
	headers := make(map[types.Indicator]string, len(national))
	cols := make([]Column, 0, len(national)+2*len(types.Quantities()))

	for _, n := range national {
		headers[n.ind] = n.header
		cols = append(cols, indicatorColumn(n.header, n.ind))
	}
	splits := derive.NonProvincial()
	for _, s := range splits {
		cols = append(cols, indicatorColumn(provincialPrefix+headers[s.National], s.Provincial))
	}
	for _, s := range splits {
		cols = append(cols, Column{
			Header: nonProvincialPrefix + headers[s.National],
			Key:    s.Name,
			Value:  s.Apply,
		})
	}
	return cols
}

func indicatorColumn(header string, ind types.Indicator) Column {
	return Column{
		Header: header,
		Key:    string(ind),
		Value:  func(v derive.View) (int, bool) { return v.Value(ind) },
	}
}

// Load reads every record from store and pairs each with its predecessor.
func Load(ctx context.Context, store ledger.Store) ([]derive.View, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "loading records for export")
	}
	return derive.Series(records), nil
}

// Write renders views in the given format.
func Write(w io.Writer, format types.ExportFormat, views []derive.View) error {
	switch format {
	case types.ExportCSV, "":
		return WriteCSV(w, views)
	case types.ExportTable:
		return WriteTable(w, views)
	case types.ExportYAML:
		return WriteYAML(w, views)
	case types.ExportJSON:
		return WriteJSON(w, views)
	default:
		return eris.Errorf("unknown export format %q", format)
	}
}

func cell(c Column, v derive.View) string {
	n, ok := c.Value(v)
	if !ok {
		return ""
	}
	return fmt.Sprint(n)
}

// WriteCSV writes one row per day, oldest first, with ISO dates. Absent
// values are empty cells.
func WriteCSV(w io.Writer, views []derive.View) error {
	cols := Columns()
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(cols)+1)
	header = append(header, dateHeader)
	for _, c := range cols {
		header = append(header, c.Header)
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "writing csv header")
	}

	for _, v := range views {
		row := make([]string, 0, len(cols)+1)
		row = append(row, v.Date().Format("2006-01-02"))
		for _, c := range cols {
			row = append(row, cell(c, v))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flushing csv")
}

// WriteTable writes the series transposed: one row per column and one
// column per day headed MM-DD, newest day first.
func WriteTable(w io.Writer, views []derive.View) error {
	headers := make([]string, 0, len(views)+1)
	headers = append(headers, "")
	for i := len(views) - 1; i >= 0; i-- {
		headers = append(headers, types.DateKey(views[i].Date()))
	}

	cols := Columns()
	rows := make([][]string, 0, len(cols))
	for _, c := range cols {
		row := make([]string, 0, len(views)+1)
		row = append(row, c.Header)
		for i := len(views) - 1; i >= 0; i-- {
			row = append(row, cell(c, views[i]))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return eris.Wrap(err, "writing table")
	}
	return nil
}

// Entry is one day in YAML and JSON output. Values holds every present
// stored or derived value keyed by column key.
type Entry struct {
	Date   string         `json:"date" yaml:"date"`
	Values map[string]int `json:"values" yaml:"values"`
}

// Entries converts views to export entries, oldest first.
func Entries(views []derive.View) []Entry {
	cols := Columns()
	out := make([]Entry, len(views))
	for i, v := range views {
		e := Entry{Date: v.Date().Format("2006-01-02"), Values: make(map[string]int)}
		for _, c := range cols {
			if n, ok := c.Value(v); ok {
				e.Values[c.Key] = n
			}
		}
		out[i] = e
	}
	return out
}

// WriteYAML writes the series as a YAML list of entries.
func WriteYAML(w io.Writer, views []derive.View) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Entries(views)); err != nil {
		return eris.Wrap(err, "marshaling YAML")
	}
	return eris.Wrap(enc.Close(), "closing YAML encoder")
}

// WriteJSON writes the series as an indented JSON array of entries.
func WriteJSON(w io.Writer, views []derive.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Entries(views)); err != nil {
		return eris.Wrap(err, "marshaling JSON")
	}
	return nil
}
