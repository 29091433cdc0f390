// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FetchBackend selects how bulletin pages are retrieved.
type FetchBackend string

const (
	// FetchHTTP uses a plain HTTP client.
	FetchHTTP FetchBackend = "http"

	// FetchBrowser drives a headless Chrome instance. Both bulletin sites
	// have served a JavaScript challenge to non-browser clients.
	FetchBrowser FetchBackend = "browser"
)

// HTTPConfig holds shared HTTP settings used by the fetch backends.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FetchConfig holds settings for retrieving bulletin and index pages.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend is http or browser (default http).
	Backend FetchBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Attempts is the total number of tries per page (default 3).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts"`

	// RetryWait is the fixed delay between tries (default 2s).
	RetryWait time.Duration `json:"retry_wait" yaml:"retry_wait" mapstructure:"retry_wait"`

	// Headless controls whether the browser backend shows a window.
	Headless bool `json:"headless" yaml:"headless" mapstructure:"headless"`

	// BrowserBin overrides the Chrome binary used by the browser backend.
	BrowserBin string `json:"browser_bin,omitempty" yaml:"browser_bin,omitempty" mapstructure:"browser_bin"`

	// SettleDelay is how long the browser backend waits after load for
	// challenge scripts to redirect to the real page.
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`
}

// DiscoveryConfig describes the paginated national bulletin index.
type DiscoveryConfig struct {
	// IndexURL is the first index page.
	IndexURL string `json:"index_url" yaml:"index_url" mapstructure:"index_url"`

	// PageURL is a fmt pattern with one %d verb for pages 2 and up.
	PageURL string `json:"page_url" yaml:"page_url" mapstructure:"page_url"`

	// Boundary is the title of the oldest bulletin in the series. The walk
	// stops once it is reached.
	Boundary string `json:"boundary" yaml:"boundary" mapstructure:"boundary"`

	// MaxPages bounds the walk (default 50).
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`
}

// ProvincialConfig lists the provincial bulletins to merge.
type ProvincialConfig struct {
	// URLs are processed in the given order, oldest first.
	URLs []string `json:"urls" yaml:"urls" mapstructure:"urls"`
}

// DataConfig locates the ledger database.
type DataConfig struct {
	// Dir holds ledger.db (default "data").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// ExportFormat selects the export serialization.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportTable ExportFormat = "table"
	ExportYAML  ExportFormat = "yaml"
	ExportJSON  ExportFormat = "json"
)

// ExportConfig holds export defaults.
type ExportConfig struct {
	// Path is the output file; empty means stdout.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Format is csv, table, yaml or json (default csv).
	Format ExportFormat `json:"format" yaml:"format" mapstructure:"format"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is a zap level name (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings for the ledger CLI.
type Config struct {
	// Year is the reporting year for titles that only carry month and day.
	Year int `json:"year" yaml:"year" mapstructure:"year"`

	Data       DataConfig       `json:"data" yaml:"data" mapstructure:"data"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Discovery  DiscoveryConfig  `json:"discovery" yaml:"discovery" mapstructure:"discovery"`
	Provincial ProvincialConfig `json:"provincial" yaml:"provincial" mapstructure:"provincial"`
	Export     ExportConfig     `json:"export" yaml:"export" mapstructure:"export"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the settings used when no config file overrides
// them.
func DefaultConfig() Config {
	return Config{
		Year: 2020,
		Data: DataConfig{Dir: "data"},
		Fetch: FetchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.130 Safari/537.36",
			},
			Backend:     FetchHTTP,
			Attempts:    3,
			RetryWait:   2 * time.Second,
			Headless:    true,
			SettleDelay: 3 * time.Second,
		},
		Discovery: DiscoveryConfig{
			IndexURL: "http://www.nhc.gov.cn/yjb/pqt/new_list.shtml",
			PageURL:  "http://www.nhc.gov.cn/yjb/pqt/new_list_%d.shtml",
			Boundary: "1月21日新型冠状病毒感染的肺炎疫情情况",
			MaxPages: 50,
		},
		Provincial: ProvincialConfig{URLs: provincialBulletins()},
		Export:     ExportConfig{Format: ExportCSV},
		Log:        LogConfig{Level: "info", Format: "console"},
	}
}

// provincialBulletins lists the provincial daily bulletins from 01-23 to
// 02-11, oldest first. Later days are covered by the national bulletin's
// provincial paragraph.
func provincialBulletins() []string {
	return []string{
		"http://wjw.hubei.gov.cn/fbjd/dtyw/202001/t20200124_2014626.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200125_2014856.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200129_2016112.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200129_2016119.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200129_2016107.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200129_2016108.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200130_2016306.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202001/t20200131_2016681.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200201_2017101.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200202_2017659.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200203_2018273.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200204_2018743.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200205_2019294.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200206_2019848.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200207_2020606.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200208_2021419.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200209_2021933.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200210_2022515.shtml",
		"http://wjw.hubei.gov.cn/fbjd/tzgg/202002/t20200211_2023521.shtml",
		"http://wjw.hubei.gov.cn/fbjd/dtyw/202002/t20200212_2024650.shtml",
	}
}
