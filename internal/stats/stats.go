// Package stats assembles the dashboard summary from independent
// aggregate sections. A section that fails is logged and replaced by its
// zero value; the payload always carries every key.
package stats

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPeriod is the recent window, in days, when none is requested.
const DefaultPeriod = 30

// ChartDays is the fixed span of the daily volume series.
const ChartDays = 30

const (
	topMerchantsLimit  = 10
	topAppsLimit       = 5
	recentTicketsLimit = 5
)

// Source runs the aggregate queries behind each section.
type Source interface {
	MerchantStats(ctx context.Context, since time.Time) (MerchantStats, error)
	TransactionStats(ctx context.Context, since time.Time) (TransactionStats, error)
	SupportStats(ctx context.Context) (SupportStats, error)
	MobileAppStats(ctx context.Context) (MobileAppStats, error)
	AppTransactionStats(ctx context.Context, since time.Time) (AppTransactionStats, error)
	RevenueBreakdown(ctx context.Context, since time.Time) (RevenueStats, error)
	DailyVolume(ctx context.Context, since time.Time) ([]DailyVolume, error)
	TopMerchants(ctx context.Context, since time.Time, limit int) ([]TopMerchant, error)
	TopApps(ctx context.Context, since time.Time, limit int) ([]TopApp, error)
	RecentTickets(ctx context.Context, limit int) ([]RecentTicket, error)
}

// Window carries the time bounds every section is computed against.
type Window struct {
	Period     int
	Since      time.Time // start of the recent window
	ChartSince time.Time // start of the daily series
}

// Section is one independently fallible part of the payload.
type Section struct {
	Key  string
	Run  func(ctx context.Context, w Window) (any, error)
	Zero func() any
}

// Assembler runs sections and merges their results.
type Assembler struct {
	sections []Section
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an assembler with the standard dashboard sections backed
// by src.
func New(src Source, logger *slog.Logger, now func() time.Time) *Assembler {
	return NewWithSections(Sections(src), logger, now)
}

// NewWithSections returns an assembler over an explicit section list.
func NewWithSections(sections []Section, logger *slog.Logger, now func() time.Time) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{sections: sections, logger: logger, now: now}
}

// ParsePeriod reads the period query value. Non-numeric or non-positive
// values yield DefaultPeriod.
func ParsePeriod(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultPeriod
	}
	return n
}

// Build runs every section and returns the merged payload. It never
// fails: a section error is logged and its zero value substituted.
func (a *Assembler) Build(ctx context.Context, period int) map[string]any {
	if period <= 0 {
		period = DefaultPeriod
	}
	now := a.now().UTC()
	w := Window{
		Period:     period,
		Since:      now.AddDate(0, 0, -period),
		ChartSince: now.AddDate(0, 0, -ChartDays),
	}

	results := make([]any, len(a.sections))
	var g errgroup.Group
	g.SetLimit(4)
	for i, s := range a.sections {
		g.Go(func() error {
			v, err := s.Run(ctx, w)
			if err != nil {
				a.logger.Error("dashboard section failed", "section", s.Key, "err", err)
				v = s.Zero()
			}
			results[i] = v
			return nil
		})
	}
	g.Wait()

	out := make(map[string]any, len(a.sections))
	for i, s := range a.sections {
		out[s.Key] = results[i]
	}
	return out
}

// Sections returns the dashboard sections in payload order.
func Sections(src Source) []Section {
	return []Section{
		{
			Key:  "merchants",
			Run:  func(ctx context.Context, w Window) (any, error) { return src.MerchantStats(ctx, w.Since) },
			Zero: func() any { return MerchantStats{} },
		},
		{
			Key:  "transactions",
			Run:  func(ctx context.Context, w Window) (any, error) { return src.TransactionStats(ctx, w.Since) },
			Zero: func() any { return TransactionStats{} },
		},
		{
			Key:  "support",
			Run:  func(ctx context.Context, _ Window) (any, error) { return src.SupportStats(ctx) },
			Zero: func() any { return SupportStats{} },
		},
		{
			Key:  "mobileApps",
			Run:  func(ctx context.Context, _ Window) (any, error) { return src.MobileAppStats(ctx) },
			Zero: func() any { return MobileAppStats{} },
		},
		{
			Key:  "appTransactions",
			Run:  func(ctx context.Context, w Window) (any, error) { return src.AppTransactionStats(ctx, w.Since) },
			Zero: func() any { return AppTransactionStats{} },
		},
		{
			Key:  "revenue",
			Run:  func(ctx context.Context, w Window) (any, error) { return src.RevenueBreakdown(ctx, w.Since) },
			Zero: func() any { return RevenueStats{} },
		},
		{
			Key: "dailyVolume",
			Run: func(ctx context.Context, w Window) (any, error) {
				return nonNil(src.DailyVolume(ctx, w.ChartSince))
			},
			Zero: func() any { return []DailyVolume{} },
		},
		{
			Key: "topMerchants",
			Run: func(ctx context.Context, w Window) (any, error) {
				return nonNil(src.TopMerchants(ctx, w.Since, topMerchantsLimit))
			},
			Zero: func() any { return []TopMerchant{} },
		},
		{
			Key: "topApps",
			Run: func(ctx context.Context, w Window) (any, error) {
				return nonNil(src.TopApps(ctx, w.Since, topAppsLimit))
			},
			Zero: func() any { return []TopApp{} },
		},
		{
			Key: "recentTickets",
			Run: func(ctx context.Context, _ Window) (any, error) {
				return nonNil(src.RecentTickets(ctx, recentTicketsLimit))
			},
			Zero: func() any { return []RecentTicket{} },
		},
	}
}

// nonNil keeps empty lists serializing as [] rather than null.
func nonNil[T any](rows []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}
