// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// ErrNoDate is returned when a title or body does not carry a reporting
// date in the expected shape. Callers skip the document.
var ErrNoDate = eris.New("no reporting date")

// titlePattern matches national bulletin titles such as
// "2月12日新型冠状病毒肺炎疫情情况" or "截至2月12日24时新型冠状病毒肺炎疫情最新情况".
var titlePattern = regexp2.MustCompile(
	`^(?<until>截至)?(?<month>\d+)月(?<day>\d+)日\w+疫情(最新)?情况$`, regexp2.None)

// bodyDatePattern matches the opening of a provincial bulletin, which states
// the reported day explicitly: "2020年2月11日0-24时".
var bodyDatePattern = regexp2.MustCompile(
	`^\s*(?<year>\d{4})年(?<month>\d+)月(?<day>\d+)日0时?(-|—)24时`, regexp2.None)

// Resolved is the calendar day a document reports on.
type Resolved struct {
	Date time.Time
	Key  string
}

func resolved(year, month, day int) Resolved {
	// time.Date normalises day 0 to the last day of the previous month.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Resolved{Date: d, Key: types.DateKey(d)}
}

// validDay reports whether month and day name a real calendar day in year.
func validDay(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// Day 0 of the following month is the last day of this one.
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}

// ResolveTitle maps a national bulletin title to the day it reports on.
// Titles starting with 截至 ("as of") name that day directly; all others
// name the publication day, which reports on the previous day.
func ResolveTitle(title string, year int) (Resolved, error) {
	m, err := titlePattern.FindStringMatch(strings.TrimSpace(title))
	if err != nil {
		return Resolved{}, eris.Wrapf(err, "matching title %q", title)
	}
	if m == nil {
		return Resolved{}, eris.Wrapf(ErrNoDate, "title %q", title)
	}

	month, err1 := parseCount(groupValue(m, "month"))
	day, err2 := parseCount(groupValue(m, "day"))
	if err1 != nil || err2 != nil || !validDay(year, month, day) {
		return Resolved{}, eris.Wrapf(ErrNoDate, "title %q names no calendar day", title)
	}
	if groupValue(m, "until") == "" {
		day--
	}
	return resolved(year, month, day), nil
}

// MatchesTitle reports whether title has the shape of a daily bulletin title.
func MatchesTitle(title string) bool {
	ok, err := titlePattern.MatchString(strings.TrimSpace(title))
	return err == nil && ok
}

// ResolveBody reads the reported day from the first line of a provincial
// bulletin. The day is taken literally.
func ResolveBody(body string) (Resolved, error) {
	m, err := bodyDatePattern.FindStringMatch(body)
	if err != nil {
		return Resolved{}, eris.Wrap(err, "matching body date")
	}
	if m == nil {
		return Resolved{}, eris.Wrap(ErrNoDate, "provincial body")
	}

	var parts [3]int
	for i, name := range []string{"year", "month", "day"} {
		v, err := parseCount(groupValue(m, name))
		if err != nil {
			return Resolved{}, eris.Wrapf(ErrNoDate, "body date %s %q", name, groupValue(m, name))
		}
		parts[i] = v
	}
	if !validDay(parts[0], parts[1], parts[2]) {
		return Resolved{}, eris.Wrapf(ErrNoDate, "body date %d-%d-%d", parts[0], parts[1], parts[2])
	}
	return resolved(parts[0], parts[1], parts[2]), nil
}
