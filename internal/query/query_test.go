package query

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type dollar struct{}

func (dollar) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

type question struct{}

func (question) Placeholder(int) string { return "?" }

var txSpec = &Spec{
	Resource:      "transactions",
	From:          "transactions t LEFT JOIN merchants m ON t.merchant_id = m.id",
	Columns:       []string{"t.id", "t.amount", "m.business_name"},
	SearchColumns: []string{"t.reference_number", "m.business_name"},
	Filters: []Filter{
		{Param: "status", Column: "t.transaction_status"},
		{Param: "merchant_id", Column: "t.merchant_id"},
		{Param: "is_cash_transaction", Column: "t.is_cash_transaction", Kind: Flag},
		{Param: "free_only", Column: "t.free", Kind: OnlyTrue},
	},
	TimeColumn: "t.processed_at",
	IDColumn:   "t.id",
	Analytics: []Aggregate{
		{Key: "total", Expr: "COUNT(*)"},
		{Key: "totalAmount", Expr: "COALESCE(SUM(t.amount), 0)", Money: true},
	},
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query        string
		limit, offst int
	}{
		{"", 50, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=abc&offset=xyz", 50, 0},
		{"limit=0", 50, 0},
		{"limit=-5&offset=-1", 50, 0},
		{"limit=100000", 500, 0},
		{"limit=500", 500, 0},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		limit, offset := ParsePagination(q)
		if limit != tt.limit || offset != tt.offst {
			t.Errorf("%q: got (%d, %d), want (%d, %d)", tt.query, limit, offset, tt.limit, tt.offst)
		}
	}
}

func TestNewPagination(t *testing.T) {
	if p := NewPagination(120, 50, 50); !p.HasMore {
		t.Errorf("offset 50 of 120 should have more: %+v", p)
	}
	if p := NewPagination(100, 50, 50); p.HasMore {
		t.Errorf("last page should not have more: %+v", p)
	}
	if p := NewPagination(0, 50, 0); p.HasMore || p.Total != 0 {
		t.Errorf("empty = %+v", p)
	}
}

func TestWhereEmpty(t *testing.T) {
	p, err := txSpec.Parse(url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	pred := txSpec.Where(dollar{}, p)
	if pred.Clause != "" || len(pred.Args) != 0 {
		t.Errorf("pred = %+v", pred)
	}
	q, args := txSpec.PageQuery(dollar{}, pred, p.Limit, p.Offset)
	want := "SELECT t.id, t.amount, m.business_name FROM transactions t LEFT JOIN merchants m ON t.merchant_id = m.id ORDER BY t.processed_at DESC, t.id DESC LIMIT $1 OFFSET $2"
	if q != want {
		t.Errorf("page query:\n got %s\nwant %s", q, want)
	}
	if len(args) != 2 || args[0] != 50 || args[1] != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestWhereSharedAcrossQueries(t *testing.T) {
	q, _ := url.ParseQuery("search=Cafe&status=completed&is_cash_transaction=false&free_only=true&limit=5&offset=10")
	p, err := txSpec.Parse(q)
	if err != nil {
		t.Fatal(err)
	}
	pred := txSpec.Where(dollar{}, p)

	wantClause := " WHERE (LOWER(t.reference_number) LIKE LOWER($1) OR LOWER(m.business_name) LIKE LOWER($2))" +
		" AND t.transaction_status = $3 AND t.is_cash_transaction = $4 AND t.free = TRUE"
	if pred.Clause != wantClause {
		t.Errorf("clause:\n got %s\nwant %s", pred.Clause, wantClause)
	}
	if len(pred.Args) != 4 || pred.Args[0] != "%Cafe%" || pred.Args[2] != "completed" || pred.Args[3] != false {
		t.Errorf("args = %v", pred.Args)
	}

	page, pageArgs := txSpec.PageQuery(dollar{}, pred, p.Limit, p.Offset)
	count, countArgs := txSpec.CountQuery(pred)
	agg, aggArgs := txSpec.AnalyticsQuery(pred)

	for _, s := range []string{page, count, agg} {
		if !strings.Contains(s, wantClause) {
			t.Errorf("query does not share predicate: %s", s)
		}
	}
	if !strings.HasSuffix(page, "LIMIT $5 OFFSET $6") {
		t.Errorf("page = %s", page)
	}
	if len(pageArgs) != 6 || pageArgs[4] != 5 || pageArgs[5] != 10 {
		t.Errorf("page args = %v", pageArgs)
	}
	if len(countArgs) != 4 || len(aggArgs) != 4 {
		t.Errorf("count args %v, agg args %v", countArgs, aggArgs)
	}
	// Page args must not alias the shared predicate.
	if len(pred.Args) != 4 {
		t.Errorf("predicate args mutated: %v", pred.Args)
	}
}

func TestOnlyTrueIgnoresOtherValues(t *testing.T) {
	p, err := txSpec.Parse(url.Values{"free_only": {"false"}})
	if err != nil {
		t.Fatal(err)
	}
	if pred := txSpec.Where(question{}, p); pred.Clause != "" {
		t.Errorf("clause = %q", pred.Clause)
	}
}

func TestDateBounds(t *testing.T) {
	p, err := txSpec.Parse(url.Values{"start_date": {"2026-03-01"}, "end_date": {"2026-03-31"}})
	if err != nil {
		t.Fatal(err)
	}
	pred := txSpec.Where(question{}, p)
	if pred.Clause != " WHERE t.processed_at >= ? AND t.processed_at < ?" {
		t.Errorf("clause = %q", pred.Clause)
	}
	start := pred.Args[0].(time.Time)
	end := pred.Args[1].(time.Time)
	if !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only end should cover the whole day, got %v", end)
	}

	p, err = txSpec.Parse(url.Values{"end_date": {"2026-03-31T12:00:00Z"}})
	if err != nil {
		t.Fatal(err)
	}
	if pred := txSpec.Where(question{}, p); pred.Clause != " WHERE t.processed_at <= ?" {
		t.Errorf("timestamp end clause = %q", pred.Clause)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := txSpec.Parse(url.Values{"start_date": {"yesterday"}, "is_cash_transaction": {"maybe"}})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	if fe["start_date"] == "" || fe["is_cash_transaction"] == "" {
		t.Errorf("errors = %v", fe)
	}
}

func TestAnalyticsResult(t *testing.T) {
	got := txSpec.AnalyticsResult([]float64{3, 150.5})
	if got["total"] != int64(3) || got["totalAmount"] != 150.5 {
		t.Errorf("got %v", got)
	}
	if q, _ := (&Spec{From: "x"}).AnalyticsQuery(Predicate{}); q != "" {
		t.Errorf("spec without analytics produced %q", q)
	}
}

var ticketUpdate = &Update{
	Table: "support_tickets",
	Key:   "id",
	Columns: []Column{
		{Name: "subject", Kind: Text},
		{Name: "status", Kind: Enum, Values: []string{"open", "resolved"}},
		{Name: "assigned_to", Kind: Text, Nullable: true},
		{Name: "onboarding_step", Kind: Int},
		{Name: "processing_fee_rate", Kind: Decimal},
		{Name: "is_loyal", Kind: Bool},
		{Name: "approved_at", Kind: Timestamp, Nullable: true},
	},
}

func TestUpdateCoerceAndBuild(t *testing.T) {
	body := map[string]any{
		"status":              "resolved",
		"subject":             "Card reader",
		"id":                  "ignored",
		"assigned_to":         nil,
		"processing_fee_rate": 0.025,
		"onboarding_step":     float64(3),
		"approved_at":         "2026-01-02T03:04:05Z",
		"drop table":          "x",
	}
	set, err := ticketUpdate.Coerce(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 6 {
		t.Fatalf("set = %v", set)
	}
	if v, _ := Lookup(set, "status"); v != "resolved" {
		t.Errorf("status = %v", v)
	}
	if v, _ := Lookup(set, "processing_fee_rate"); !v.(decimal.Decimal).Equal(decimal.RequireFromString("0.025")) {
		t.Errorf("rate = %v", v)
	}
	if v, _ := Lookup(set, "onboarding_step"); v != int64(3) {
		t.Errorf("step = %#v", v)
	}

	set = append(set, Assignment{Column: "updated_at", Value: "now"})
	q, args, err := ticketUpdate.Build(dollar{}, set, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	want := "UPDATE support_tickets SET subject = $1, status = $2, assigned_to = $3, onboarding_step = $4, processing_fee_rate = $5, approved_at = $6, updated_at = $7 WHERE id = $8"
	if q != want {
		t.Errorf("query:\n got %s\nwant %s", q, want)
	}
	if len(args) != 8 || args[7] != "t-1" || args[2] != nil {
		t.Errorf("args = %v", args)
	}
}

func TestUpdateNoFields(t *testing.T) {
	if _, err := ticketUpdate.Coerce(map[string]any{"id": "x", "bogus": 1}); !errors.Is(err, ErrNoFields) {
		t.Errorf("err = %v", err)
	}
	if _, _, err := ticketUpdate.Build(question{}, nil, "x"); !errors.Is(err, ErrNoFields) {
		t.Errorf("err = %v", err)
	}
}

func TestUpdateRejectsBadValues(t *testing.T) {
	_, err := ticketUpdate.Coerce(map[string]any{
		"status":          "closed-forever",
		"onboarding_step": 2.5,
		"is_loyal":        "yes",
		"subject":         nil,
	})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v", err)
	}
	for _, f := range []string{"status", "onboarding_step", "is_loyal", "subject"} {
		if fe[f] == "" {
			t.Errorf("missing error for %s: %v", f, fe)
		}
	}
	if !strings.Contains(err.Error(), "status: must be one of open, resolved") {
		t.Errorf("Error() = %q", err.Error())
	}
}
