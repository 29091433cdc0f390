// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/ncov-ledger/internal/ledger"
	"github.com/pdiddy/ncov-ledger/internal/page"
	"github.com/pdiddy/ncov-ledger/internal/reconcile"
	"github.com/pdiddy/ncov-ledger/pkg/types"
)

// --- fixtures ---

const (
	nationalRef   = "http://www.nhc.gov.cn/xcs/yqtb/202002/0205.shtml"
	nationalTitle = "2月6日新型冠状病毒感染的肺炎疫情最新情况"
	provincialRef = "http://wjw.hubei.gov.cn/fbjd/dtyw/202002/0205.shtml"
)

const nationalBody = `2月5日0—24时，31个省（自治区、直辖市）和新疆生产建设兵团报告新增确诊病例3694例（湖北省2987例），新增重症病例640例（湖北省604例），新增死亡病例73例（湖北省70例），新增治愈出院病例262例（湖北省101例），新增疑似病例5328例（湖北省2665例）。
当日解除医学观察的密切接触者5174人。
截至2月5日24时，据31个省（自治区、直辖市）和新疆生产建设兵团报告，现有确诊病例24702例（其中重症病例3219例），累计治愈出院病例1153例，累计死亡病例563例，累计报告确诊病例28018例，现有疑似病例23260例。累计追踪到密切接触者282813人，尚在医学观察的密切接触者186045人。`

const provincialBody = `2020年2月5日0-24时，湖北省新增新型冠状病毒感染的肺炎病例2987例，其中：武汉市1967例。
新增病亡病例70例，新增出院病例101例。
截至2月5日24时，湖北省累计报告新型冠状病毒感染的肺炎病例16678例，累计出院病例538例，累计病亡病例479例。
目前仍在院治疗15661例，其中重症病例2328例、危重症病例711例，均在定点医疗机构接受隔离治疗。
现有疑似病例10807例。`

func nationalPage(title, body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<html><body><div class="tit">%s</div><div id="xw_box">`, title)
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(&sb, "<p>%s</p>", line)
	}
	sb.WriteString(`<p style="text-align: right">国家卫生健康委办公厅</p><div class="fx">分享到</div></div></body></html>`)
	return sb.String()
}

func provincialPage(body string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div id="article-box">`)
	for _, line := range strings.Split(body, "\n") {
		fmt.Fprintf(&sb, "<p>%s</p>", line)
	}
	sb.WriteString(`</div></body></html>`)
	return sb.String()
}

// --- fakes ---

type site struct {
	pages   map[string]string
	fetched []string
}

func (s *site) Fetch(_ context.Context, url string) ([]byte, error) {
	s.fetched = append(s.fetched, url)
	p, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: HTTP 404", url)
	}
	return []byte(p), nil
}

type links []page.Link

func (l links) Discover(context.Context, map[string]bool) ([]page.Link, error) {
	return l, nil
}

func feb(d int) time.Time { return time.Date(2020, 2, d, 0, 0, 0, 0, time.UTC) }

func newEngine(t *testing.T, s *site) (*Engine, *ledger.MemoryStore, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	store := ledger.NewMemoryStore()
	return New(store, s, zap.New(core), 2020), store, logs
}

func warnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.Filter(func(e observer.LoggedEntry) bool { return e.Level >= zapcore.WarnLevel }).All()
}

// --- tests ---

func TestProcessNational(t *testing.T) {
	e, store, logs := newEngine(t, &site{})
	ctx := context.Background()

	rep, err := e.ProcessNational(ctx, nationalRef, nationalTitle, nationalBody)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, rep.Status)
	assert.Equal(t, feb(5), rep.Date)
	assert.Empty(t, rep.Misses)
	assert.Empty(t, warnings(logs))

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, 28018, rec.Values[types.TotalConfirmed])
	assert.Equal(t, 2987, rec.Values[types.HBNewConfirmed])
	assert.Equal(t, 3219, rec.Values[types.RemainingSevere])
	assert.Equal(t, nationalRef, rec.SourceRef)
	assert.Equal(t, nationalTitle, rec.SourceTitle)
	assert.Equal(t, nationalBody, rec.SourceText)
}

func TestProcessNationalAsOfTitle(t *testing.T) {
	e, store, _ := newEngine(t, &site{})
	ctx := context.Background()

	rep, err := e.ProcessNational(ctx, nationalRef, "截至2月5日24时新型冠状病毒肺炎疫情最新情况", nationalBody)
	require.NoError(t, err)
	assert.Equal(t, feb(5), rep.Date)

	_, err = store.Get(ctx, feb(5))
	assert.NoError(t, err)
}

func TestProcessNationalSkipsUndatedTitle(t *testing.T) {
	e, store, logs := newEngine(t, &site{})
	ctx := context.Background()

	rep, err := e.ProcessNational(ctx, nationalRef, "国家卫生健康委关于疫情防控工作的通知", nationalBody)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, rep.Status)
	assert.Equal(t, 1, logs.FilterMessage("skipping bulletin without a date in its title").Len())

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessProvincialFillsRecord(t *testing.T) {
	e, store, logs := newEngine(t, &site{})
	ctx := context.Background()

	_, err := e.ProcessNational(ctx, nationalRef, nationalTitle, nationalBody)
	require.NoError(t, err)

	rep, err := e.ProcessProvincial(ctx, provincialRef, provincialBody)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, rep.Status)
	require.NotNil(t, rep.Reconciliation)
	assert.ElementsMatch(t, []types.Indicator{
		types.HBNewConfirmed, types.HBNewCured, types.HBNewDeath,
	}, rep.Reconciliation.Agreed)
	assert.Empty(t, warnings(logs))

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, 16678, rec.Values[types.HBTotalConfirmed])
	assert.Equal(t, 538, rec.Values[types.HBCured])
	assert.Equal(t, 479, rec.Values[types.HBDeath])
	assert.Equal(t, 2328+711, rec.Values[types.HBRemainingSevere])
	assert.Equal(t, 15661, rec.Values[types.HBRemainingConfirmed])
	assert.Equal(t, 10807, rec.Values[types.HBRemainingSuspected])
	assert.NotContains(t, rec.Values, types.HBRemainingCritical)
	assert.Equal(t, 28018, rec.Values[types.TotalConfirmed], "national values are kept")
	assert.Equal(t, nationalRef, rec.SourceRef)
	assert.Equal(t, provincialRef, rec.ProvincialRef)
	assert.Equal(t, provincialBody, rec.ProvincialText)
}

func TestProcessProvincialContradiction(t *testing.T) {
	e, store, logs := newEngine(t, &site{})
	ctx := context.Background()

	_, err := e.ProcessNational(ctx, nationalRef, nationalTitle, nationalBody)
	require.NoError(t, err)
	before, err := store.Get(ctx, feb(5))
	require.NoError(t, err)

	body := strings.Replace(provincialBody, "新增病亡病例70例", "新增病亡病例71例", 1)
	rep, err := e.ProcessProvincial(ctx, provincialRef, body)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, rep.Status)

	var ce *reconcile.ContradictionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, types.HBNewDeath, ce.Indicator)
	assert.Equal(t, 70, ce.Stored)
	assert.Equal(t, 71, ce.Scraped)
	assert.Equal(t, 1, logs.FilterMessage("sources disagree").Len())

	after, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, before.Values, after.Values)
	assert.Empty(t, after.ProvincialRef)
}

func TestProcessProvincialWithoutNationalRecord(t *testing.T) {
	e, store, _ := newEngine(t, &site{})
	ctx := context.Background()

	rep, err := e.ProcessProvincial(ctx, provincialRef, provincialBody)
	assert.True(t, errors.Is(err, ErrNoPrimary))
	assert.Equal(t, StatusSkipped, rep.Status)

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessProvincialSkipsUndatedBody(t *testing.T) {
	e, _, _ := newEngine(t, &site{})

	rep, err := e.ProcessProvincial(context.Background(), provincialRef, "湖北省卫健委关于疫情防控的通告")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, rep.Status)
}

func TestRunNationalThenProvincial(t *testing.T) {
	s := &site{pages: map[string]string{
		nationalRef:   nationalPage(nationalTitle, nationalBody),
		provincialRef: provincialPage(provincialBody),
	}}
	e, store, logs := newEngine(t, s)
	ctx := context.Background()
	discovered := links{{URL: nationalRef, Title: nationalTitle}}

	sum, err := e.RunNational(ctx, discovered)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1}, sum)

	sum, err = e.RunProvincial(ctx, []string{provincialRef})
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1}, sum)
	assert.Empty(t, warnings(logs))

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, 16678, rec.Values[types.HBTotalConfirmed])
	assert.Equal(t, 3694, rec.Values[types.NewConfirmed])
}

func TestRerunIsIdempotent(t *testing.T) {
	s := &site{pages: map[string]string{
		nationalRef:   nationalPage(nationalTitle, nationalBody),
		provincialRef: provincialPage(provincialBody),
	}}
	e, store, logs := newEngine(t, s)
	ctx := context.Background()
	discovered := links{{URL: nationalRef, Title: nationalTitle}}

	_, err := e.RunNational(ctx, discovered)
	require.NoError(t, err)
	_, err = e.RunProvincial(ctx, []string{provincialRef})
	require.NoError(t, err)
	first, err := store.List(ctx)
	require.NoError(t, err)

	fetched := len(s.fetched)
	logs.TakeAll()

	sum, err := e.RunNational(ctx, discovered)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)
	sum, err = e.RunProvincial(ctx, []string{provincialRef})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)

	second, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
	assert.Equal(t, first[0].Values, second[0].Values)
	assert.Equal(t, fetched, len(s.fetched), "recorded documents are not fetched again")
	assert.Empty(t, warnings(logs))
}

func TestRunNationalContinuesAfterFetchFailure(t *testing.T) {
	s := &site{pages: map[string]string{
		nationalRef: nationalPage(nationalTitle, nationalBody),
	}}
	e, _, logs := newEngine(t, s)

	sum, err := e.RunNational(context.Background(), links{
		{URL: "http://www.nhc.gov.cn/missing.shtml", Title: "2月5日新型冠状病毒感染的肺炎疫情最新情况"},
		{URL: nationalRef, Title: nationalTitle},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1, Failed: 1}, sum)
	assert.Equal(t, 1, logs.FilterMessage("fetch failed").Len())
}

func TestRunNationalCountsMisses(t *testing.T) {
	// Without the severe sentence a bulletin after 02-01 misses both
	// new_severe and hb_new_severe.
	body := strings.Replace(nationalBody, "新增重症病例640例（湖北省604例），", "", 1)
	s := &site{pages: map[string]string{nationalRef: nationalPage(nationalTitle, body)}}
	e, _, logs := newEngine(t, s)

	sum, err := e.RunNational(context.Background(), links{{URL: nationalRef, Title: nationalTitle}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Ingested)
	assert.Equal(t, 2, sum.Misses)

	misses := logs.FilterMessage("no match").All()
	require.Len(t, misses, 2)
	assert.Equal(t, zapcore.ErrorLevel, misses[0].Level)
	assert.Equal(t, "02-05", misses[0].ContextMap()["date"])
	assert.Equal(t, "critical", misses[0].ContextMap()["severity"])
}

func TestRunProvincialStopsOnContradiction(t *testing.T) {
	bad := strings.Replace(provincialBody, "新增出院病例101例", "新增出院病例100例", 1)
	s := &site{pages: map[string]string{
		nationalRef:   nationalPage(nationalTitle, nationalBody),
		provincialRef: provincialPage(bad),
		"http://wjw.hubei.gov.cn/later.shtml": provincialPage(provincialBody),
	}}
	e, _, _ := newEngine(t, s)
	ctx := context.Background()

	_, err := e.RunNational(ctx, links{{URL: nationalRef, Title: nationalTitle}})
	require.NoError(t, err)

	sum, err := e.RunProvincial(ctx, []string{provincialRef, "http://wjw.hubei.gov.cn/later.shtml"})
	require.Error(t, err)
	assert.True(t, reconcile.IsContradiction(err))
	assert.Equal(t, Summary{Failed: 1}, sum)
	assert.NotContains(t, s.fetched, "http://wjw.hubei.gov.cn/later.shtml")
}

func TestRunProvincialSkipsMissingNationalRecord(t *testing.T) {
	s := &site{pages: map[string]string{provincialRef: provincialPage(provincialBody)}}
	e, _, _ := newEngine(t, s)

	sum, err := e.RunProvincial(context.Background(), []string{provincialRef})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, sum)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	e, _, _ := newEngine(t, &site{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunProvincial(ctx, []string{provincialRef})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunNationalKeepsFirstBulletinForADay(t *testing.T) {
	const asOfRef = "http://www.nhc.gov.cn/xcs/yqtb/202002/0205-asof.shtml"
	const asOfTitle = "截至2月5日24时新型冠状病毒肺炎疫情最新情况"
	s := &site{pages: map[string]string{
		nationalRef: nationalPage(nationalTitle, nationalBody),
		asOfRef:     nationalPage(asOfTitle, nationalBody),
	}}
	e, store, logs := newEngine(t, s)
	ctx := context.Background()
	discovered := links{
		{URL: nationalRef, Title: nationalTitle},
		{URL: asOfRef, Title: asOfTitle},
	}

	sum, err := e.RunNational(ctx, discovered)
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1, Skipped: 1}, sum)
	assert.Equal(t, 1, logs.FilterMessage("another bulletin is already recorded for this date").Len())

	for run := 2; run <= 3; run++ {
		sum, err = e.RunNational(ctx, discovered)
		require.NoError(t, err)
		assert.Equal(t, Summary{Skipped: 2}, sum, "run %d", run)

		refs, err := store.References(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{nationalRef: true}, refs, "run %d", run)
	}

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, nationalRef, rec.SourceRef)
	assert.Equal(t, nationalTitle, rec.SourceTitle)
}

func TestProcessNationalSameReferenceUpdates(t *testing.T) {
	e, store, _ := newEngine(t, &site{})
	ctx := context.Background()

	_, err := e.ProcessNational(ctx, nationalRef, nationalTitle, nationalBody)
	require.NoError(t, err)

	body := strings.Replace(nationalBody, "累计追踪到密切接触者282813人", "累计追踪到密切接触者282814人", 1)
	rep, err := e.ProcessNational(ctx, nationalRef, nationalTitle, body)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, rep.Status)

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, 282814, rec.Values[types.TotalTracked])
}

func TestRunNationalSkipsImpossibleTitleDates(t *testing.T) {
	const overflowRef = "http://www.nhc.gov.cn/xcs/yqtb/overflow.shtml"
	const overflowTitle = "99999999999999999999月6日新型冠状病毒肺炎疫情最新情况"
	const monthRef = "http://www.nhc.gov.cn/xcs/yqtb/month13.shtml"
	const monthTitle = "13月5日新型冠状病毒肺炎疫情最新情况"
	s := &site{pages: map[string]string{
		overflowRef: nationalPage(overflowTitle, nationalBody),
		monthRef:    nationalPage(monthTitle, nationalBody),
		nationalRef: nationalPage(nationalTitle, nationalBody),
	}}
	e, store, logs := newEngine(t, s)
	ctx := context.Background()

	sum, err := e.RunNational(ctx, links{
		{URL: overflowRef, Title: overflowTitle},
		{URL: monthRef, Title: monthTitle},
		{URL: nationalRef, Title: nationalTitle},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingested: 1, Skipped: 2}, sum)
	assert.Equal(t, 2, logs.FilterMessage("skipping bulletin without a date in its title").Len())

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, feb(5), records[0].Date)
}

func TestProcessProvincialComputedValueReplacesStored(t *testing.T) {
	e, store, _ := newEngine(t, &site{})
	ctx := context.Background()

	_, err := e.ProcessNational(ctx, nationalRef, nationalTitle, nationalBody)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, &types.Record{
		Date:   feb(5),
		Values: types.Counts{types.HBRemainingConfirmed: 15000},
	}))

	rep, err := e.ProcessProvincial(ctx, provincialRef, provincialBody)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, rep.Status)
	assert.NotContains(t, rep.Reconciliation.Filled, types.HBRemainingConfirmed)
	assert.NotContains(t, rep.Reconciliation.Agreed, types.HBRemainingConfirmed)

	rec, err := store.Get(ctx, feb(5))
	require.NoError(t, err)
	assert.Equal(t, 16678-538-479, rec.Values[types.HBRemainingConfirmed])
}
