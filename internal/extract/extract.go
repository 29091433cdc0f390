// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns bulletin titles and bodies into dated indicator
// counts. Rules are declarative tables compiled once by New; a single
// routine applies any table to a body.
//
// Patterns use .NET regular expression syntax (regexp2) because the
// bulletins need negative look-behind to tell cumulative counts
// ("治愈出院病例") from daily ones ("新增治愈出院病例"), and Unicode \w.
package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// matchTimeout bounds a single pattern evaluation.
const matchTimeout = time.Second

type compiledRule struct {
	Rule
	pattern  *regexp2.Regexp
	negative *regexp2.Regexp
}

// Extractor applies a compiled rule table to bulletin bodies.
type Extractor struct {
	rules []compiledRule
	log   *zap.Logger
}

// Miss records an indicator whose rule found nothing on or after its
// introduction day.
type Miss struct {
	Indicator types.Indicator
	Key       string
	Pattern   string
}

// Result holds the outcome of extracting one body.
type Result struct {
	Values types.Counts
	Misses []Miss
}

// New compiles rules in order. A nil logger discards diagnostics.
func New(rules []Rule, log *zap.Logger) (*Extractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Extractor{log: log}
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		re, err := compile(r.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "rule %s", r.Indicator)
		}
		if re.GroupNumberFromName("value") < 0 {
			return nil, eris.Errorf("rule %s: pattern has no value group", r.Indicator)
		}
		cr.pattern = re
		if r.Negative != "" {
			if cr.negative, err = compile(r.Negative); err != nil {
				return nil, eris.Wrapf(err, "rule %s negative", r.Indicator)
			}
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

// MustNew is New for static rule tables; it panics on a bad pattern.
func MustNew(rules []Rule, log *zap.Logger) *Extractor {
	e, err := New(rules, log)
	if err != nil {
		panic(err)
	}
	return e
}

func compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.Multiline)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// Extract applies every rule to body for the day on. Indicators without a
// match are left absent; misses on or after a rule's introduction day are
// logged and returned.
func (e *Extractor) Extract(body string, on Resolved) Result {
	res := Result{Values: types.Counts{}}
	log := e.log.With(zap.String("date", on.Key))

	for _, r := range e.rules {
		if v, ok := e.find(r.pattern, body, log); ok {
			res.Values.Set(r.Indicator, v)
			log.Debug("extracted", zap.String("indicator", string(r.Indicator)), zap.Int("value", v))
			continue
		}
		if r.negative != nil {
			if v, ok := e.find(r.negative, body, log); ok {
				res.Values.Set(r.Indicator, -v)
				log.Debug("extracted decrease", zap.String("indicator", string(r.Indicator)), zap.Int("value", -v))
				continue
			}
		}
		if r.IntroducedOn != "" && on.Key < r.IntroducedOn {
			continue
		}
		res.Misses = append(res.Misses, Miss{Indicator: r.Indicator, Key: on.Key, Pattern: r.Pattern})
		log.Error("no match",
			zap.String("severity", "critical"),
			zap.String("indicator", string(r.Indicator)),
			zap.String("pattern", r.Pattern),
		)
	}
	return res
}

func (e *Extractor) find(re *regexp2.Regexp, body string, log *zap.Logger) (int, bool) {
	m, err := re.FindStringMatch(body)
	if err != nil {
		log.Warn("pattern evaluation failed", zap.String("pattern", re.String()), zap.Error(err))
		return 0, false
	}
	if m == nil {
		return 0, false
	}
	s := groupValue(m, "value")
	if s == "" {
		s = groupValue(m, "alt")
	}
	if s == "" {
		return 0, false
	}
	v, err := parseCount(s)
	if err != nil {
		log.Warn("unparsable count", zap.String("text", s), zap.Error(err))
		return 0, false
	}
	return v, true
}

// groupValue returns the text captured by a named group, or "" when the
// group is undefined or did not take part in the match.
func groupValue(m *regexp2.Match, name string) string {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// parseCount converts ASCII or full-width digits to an int.
func parseCount(s string) (int, error) {
	s = strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "parsing count %q", s)
	}
	return n, nil
}
