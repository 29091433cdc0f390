// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "github.com/pdiddy/ncov-ledger/pkg/types"

// Rule describes how one indicator is found in a bulletin body.
//
// Pattern must define a named group "value" and may define a second group
// "alt" for a different sentence shape; whichever participates in the match
// supplies the number. Negative, when set, is tried only if Pattern does not
// match and describes a decrease; its number is negated. IntroducedOn is the
// MM-DD key of the first day the indicator appears in bulletins; before it a
// missing match is expected and silent.
type Rule struct {
	Indicator    types.Indicator
	Pattern      string
	Negative     string
	IntroducedOn string
}

// case nouns used interchangeably across the series.
const caseNoun = `(病例|患者)?`

// provincialLine anchors a pattern to a paragraph that starts with the
// province name.
func provincialLine(pattern string) string {
	return `^\s*湖北.*` + pattern
}

// subCount builds a rule for a provincial daily count. The national sentence
// carries it as a parenthetical ("新增确诊病例2015例（湖北省1638例）"); later
// bulletins move it to a paragraph of its own. The parenthetical alternative
// comes first so a provincial paragraph further down does not shadow it.
func subCount(phrase string) string {
	return `(新增` + phrase + caseNoun + `\d+例（湖北省?(?<value>\d+)例|` +
		provincialLine(`新增`+phrase+caseNoun+`(?<alt>\d+)例`) + `)`
}

// NationalRules returns the ordered rule table for national bulletins.
func NationalRules() []Rule {
	return []Rule{
		{Indicator: types.NewConfirmed, Pattern: `新增\w*确诊` + caseNoun + `(?<value>\d+)例`},
		{Indicator: types.HBNewConfirmed, Pattern: subCount(`确诊`), IntroducedOn: "02-01"},
		{
			Indicator:    types.NewSevere,
			Pattern:      `新增重症` + caseNoun + `(?<value>\d+)例`,
			Negative:     `重症(病例|患者)减少(?<value>\d+)例`,
			IntroducedOn: "01-25",
		},
		{Indicator: types.HBNewSevere, Pattern: subCount(`重症`), IntroducedOn: "02-01"},
		{Indicator: types.NewDeath, Pattern: `新增死亡` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "01-21"},
		{Indicator: types.HBNewDeath, Pattern: subCount(`死亡`), IntroducedOn: "01-25"},
		{Indicator: types.NewSuspected, Pattern: `新增疑似` + caseNoun + `(?<value>\d+)例`},
		{Indicator: types.HBNewSuspected, Pattern: subCount(`疑似`), IntroducedOn: "02-01"},
		{Indicator: types.NewCured, Pattern: `新增治愈出院` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "01-23"},
		{Indicator: types.HBNewCured, Pattern: subCount(`治愈出院`), IntroducedOn: "02-01"},
		{Indicator: types.NewLifted, Pattern: `解除医学观察(的密切接触者)?(?<value>\d+)人`},
		{Indicator: types.RemainingConfirmed, Pattern: `现有确诊` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "02-06"},
		{
			Indicator:    types.HBRemainingConfirmed,
			Pattern:      provincialLine(`现有确诊` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.RemainingSevere, Pattern: `(?<!新增)重症` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "01-21"},
		{
			Indicator:    types.HBRemainingSevere,
			Pattern:      provincialLine(`(?<!新增)重症` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.Cured, Pattern: `(?<!新增)治愈出院` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "01-23"},
		{
			Indicator:    types.HBCured,
			Pattern:      provincialLine(`(?<!新增)治愈出院` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.Death, Pattern: `(?<!新增)死亡` + caseNoun + `(?<value>\d+)例`, IntroducedOn: "01-21"},
		{
			Indicator:    types.HBDeath,
			Pattern:      provincialLine(`(?<!新增)死亡` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.TotalConfirmed, Pattern: `累计(报告)?\w*确诊` + caseNoun + `(?<value>\d+)例`},
		{
			Indicator:    types.HBTotalConfirmed,
			Pattern:      provincialLine(`累计(报告)?\w*确诊` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.RemainingSuspected, Pattern: `(现有|共有|累计报告)疑似` + caseNoun + `(?<value>\d+)例`},
		{
			Indicator:    types.HBRemainingSuspected,
			Pattern:      provincialLine(`(现有|共有|累计报告)疑似` + caseNoun + `(?<value>\d+)例`),
			IntroducedOn: "02-12",
		},
		{Indicator: types.TotalTracked, Pattern: `追踪到密切接触者(?<value>\d+)人`},
		{
			Indicator: types.RemainingQuarantined,
			Pattern:   `(尚在医学观察的密切接触者(?<value>\d+)人|(?<alt>\d+)人正在接受医学观察)`,
		},
	}
}

// ProvincialRules returns the ordered rule table for provincial bulletins.
// The provincial text names only provincial figures, so every rule yields
// an hb_ indicator.
func ProvincialRules() []Rule {
	return []Rule{
		{Indicator: types.HBNewConfirmed, Pattern: `新增\w+病例(?<value>\d+)例`},
		{Indicator: types.HBNewDeath, Pattern: `新增(死亡|病亡)(病例)?(?<value>\d+)例`},
		{Indicator: types.HBNewCured, Pattern: `新增出院(病例)?(?<value>\d+)例`, IntroducedOn: "01-29"},
		{Indicator: types.HBRemainingSevere, Pattern: `(?<!危)重症(病例)?(?<value>\d+)例`},
		{Indicator: types.HBRemainingCritical, Pattern: `危重症(病例)?(?<value>\d+)例`},
		{Indicator: types.HBCured, Pattern: `(?<!新增)出院(病例)?(?<value>\d+)例`},
		{Indicator: types.HBDeath, Pattern: `(?<!新增)(死亡|病亡)(病例)?(?<value>\d+)例`},
		{Indicator: types.HBTotalConfirmed, Pattern: `累计报告\w+病例(?<value>\d+)例`},
		{Indicator: types.HBRemainingSuspected, Pattern: `现有疑似病例(?<value>\d+)(例|人)`, IntroducedOn: "02-08"},
	}
}
