package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

var errTableMissing = errors.New(`relation "support_tickets" does not exist`)

type fakeSource struct {
	failSupport bool
	failDaily   bool

	mu     sync.Mutex
	since  map[string]time.Time
	limits map[string]int
}

func (f *fakeSource) record(key string, since time.Time, limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.since == nil {
		f.since = map[string]time.Time{}
		f.limits = map[string]int{}
	}
	f.since[key] = since
	f.limits[key] = limit
}

func (f *fakeSource) MerchantStats(_ context.Context, since time.Time) (MerchantStats, error) {
	f.record("merchants", since, 0)
	return MerchantStats{TotalMerchants: 4, ActiveMerchants: 2, PendingMerchants: 1, UnderReviewMerchants: 1}, nil
}

func (f *fakeSource) TransactionStats(_ context.Context, since time.Time) (TransactionStats, error) {
	f.record("transactions", since, 0)
	return TransactionStats{TotalTransactions: 3, TotalVolume: 300, TotalFees: 8.7, TotalRevenue: 5.8, CashTransactions: 1, NonCashTransactions: 2}, nil
}

func (f *fakeSource) SupportStats(context.Context) (SupportStats, error) {
	if f.failSupport {
		return SupportStats{OpenTickets: 99}, errTableMissing
	}
	return SupportStats{OpenTickets: 2, HighPriorityOpen: 1, ResolvedTickets: 5}, nil
}

func (f *fakeSource) MobileAppStats(context.Context) (MobileAppStats, error) {
	return MobileAppStats{TotalApps: 2, ActiveApps: 1, TotalDownloads: 1500}, nil
}

func (f *fakeSource) AppTransactionStats(_ context.Context, since time.Time) (AppTransactionStats, error) {
	f.record("appTransactions", since, 0)
	return AppTransactionStats{TotalAppTransactions: 1, TotalAppVolume: 9.99}, nil
}

func (f *fakeSource) RevenueBreakdown(_ context.Context, since time.Time) (RevenueStats, error) {
	f.record("revenue", since, 0)
	return RevenueStats{NonCashRevenue: 5.8, NonCashCount: 2, CashCount: 1}, nil
}

func (f *fakeSource) DailyVolume(_ context.Context, since time.Time) ([]DailyVolume, error) {
	f.record("dailyVolume", since, 0)
	if f.failDaily {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func (f *fakeSource) TopMerchants(_ context.Context, since time.Time, limit int) ([]TopMerchant, error) {
	f.record("topMerchants", since, limit)
	return []TopMerchant{{BusinessName: "Blue Cafe", TotalVolume: 200, TransactionCount: 2}}, nil
}

func (f *fakeSource) TopApps(_ context.Context, since time.Time, limit int) ([]TopApp, error) {
	f.record("topApps", since, limit)
	return []TopApp{}, nil
}

func (f *fakeSource) RecentTickets(_ context.Context, limit int) ([]RecentTicket, error) {
	f.record("recentTickets", time.Time{}, limit)
	if f.failSupport {
		return nil, errTableMissing
	}
	return []RecentTicket{{ID: "t1", Subject: "Refund"}}, nil
}

var fixedNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func newAssembler(src Source, logs *bytes.Buffer) *Assembler {
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	return New(src, logger, func() time.Time { return fixedNow })
}

var allKeys = []string{
	"merchants", "transactions", "support", "mobileApps", "appTransactions",
	"revenue", "dailyVolume", "topMerchants", "topApps", "recentTickets",
}

func TestBuildAllSections(t *testing.T) {
	var logs bytes.Buffer
	src := &fakeSource{}
	out := newAssembler(src, &logs).Build(context.Background(), 7)

	for _, k := range allKeys {
		if _, ok := out[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if got := out["merchants"].(MerchantStats).TotalMerchants; got != 4 {
		t.Errorf("total_merchants = %d", got)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected logs: %s", logs.String())
	}

	if want := fixedNow.AddDate(0, 0, -7); !src.since["transactions"].Equal(want) {
		t.Errorf("recent window starts %v, want %v", src.since["transactions"], want)
	}
	if want := fixedNow.AddDate(0, 0, -30); !src.since["dailyVolume"].Equal(want) {
		t.Errorf("chart window starts %v, want %v (independent of period)", src.since["dailyVolume"], want)
	}
	if src.limits["topMerchants"] != 10 || src.limits["topApps"] != 5 || src.limits["recentTickets"] != 5 {
		t.Errorf("limits = %v", src.limits)
	}
}

func TestBuildSubstitutesZeroOnFailure(t *testing.T) {
	var logs bytes.Buffer
	out := newAssembler(&fakeSource{failSupport: true, failDaily: true}, &logs).Build(context.Background(), 30)

	if got := out["support"].(SupportStats); got != (SupportStats{}) {
		t.Errorf("support = %+v, want zero value", got)
	}
	if got := out["recentTickets"].([]RecentTicket); got == nil || len(got) != 0 {
		t.Errorf("recentTickets = %#v, want empty list", got)
	}
	if got := out["merchants"].(MerchantStats); got.TotalMerchants != 4 {
		t.Errorf("merchants section lost: %+v", got)
	}
	if got := out["mobileApps"].(MobileAppStats); got.TotalDownloads != 1500 {
		t.Errorf("mobileApps section lost: %+v", got)
	}

	for _, section := range []string{`"section":"support"`, `"section":"recentTickets"`, `"section":"dailyVolume"`} {
		if !strings.Contains(logs.String(), section) {
			t.Errorf("failure for %s not logged: %s", section, logs.String())
		}
	}
}

func TestBuildEncodesEmptyListsAsArrays(t *testing.T) {
	var logs bytes.Buffer
	out := newAssembler(&fakeSource{failDaily: false}, &logs).Build(context.Background(), 30)
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"dailyVolume":[]`) {
		t.Errorf("payload = %s", b)
	}
	if strings.Contains(string(b), "null") {
		t.Errorf("payload contains null: %s", b)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]int{"": 30, "abc": 30, "0": 30, "-3": 30, "7": 7, "90": 90}
	for in, want := range tests {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q) = %d, want %d", in, got, want)
		}
	}
}
