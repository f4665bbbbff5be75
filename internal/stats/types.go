package stats

import "time"

// MerchantStats counts merchants by status.
type MerchantStats struct {
	TotalMerchants       int64 `json:"total_merchants"`
	ActiveMerchants      int64 `json:"active_merchants"`
	PendingMerchants     int64 `json:"pending_merchants"`
	UnderReviewMerchants int64 `json:"under_review_merchants"`
	LoyalMerchants       int64 `json:"loyal_merchants"`
	NewMerchants         int64 `json:"new_merchants"`
}

// TransactionStats summarizes processing transactions overall and over
// the recent window.
type TransactionStats struct {
	TotalTransactions   int64   `json:"total_transactions"`
	TotalVolume         float64 `json:"total_volume"`
	TotalFees           float64 `json:"total_fees"`
	TotalRevenue        float64 `json:"total_revenue"`
	RecentTransactions  int64   `json:"recent_transactions"`
	RecentVolume        float64 `json:"recent_volume"`
	RecentRevenue       float64 `json:"recent_revenue"`
	NonCashTransactions int64   `json:"non_cash_transactions"`
	CashTransactions    int64   `json:"cash_transactions"`
}

type SupportStats struct {
	OpenTickets      int64 `json:"open_tickets"`
	HighPriorityOpen int64 `json:"high_priority_open"`
	ResolvedTickets  int64 `json:"resolved_tickets"`
}

type MobileAppStats struct {
	TotalApps           int64 `json:"total_apps"`
	ActiveApps          int64 `json:"active_apps"`
	TotalDownloads      int64 `json:"total_downloads"`
	TotalActiveUsers    int64 `json:"total_active_users"`
	AppsWithFreeVersion int64 `json:"apps_with_free_version"`
}

type AppTransactionStats struct {
	TotalAppTransactions    int64   `json:"total_app_transactions"`
	TotalAppVolume          float64 `json:"total_app_volume"`
	TotalAppRevenue         float64 `json:"total_app_revenue"`
	RecentAppTransactions   int64   `json:"recent_app_transactions"`
	RecentAppVolume         float64 `json:"recent_app_volume"`
	RecentAppRevenue        float64 `json:"recent_app_revenue"`
	FreeVersionTransactions int64   `json:"free_version_transactions"`
	PremiumTransactions     int64   `json:"premium_transactions"`
}

// RevenueStats splits recent platform revenue by cash and non-cash.
type RevenueStats struct {
	NonCashRevenue float64 `json:"non_cash_revenue"`
	CashRevenue    float64 `json:"cash_revenue"`
	NonCashCount   int64   `json:"non_cash_count"`
	CashCount      int64   `json:"cash_count"`
}

// DailyVolume is one day of the chart series. Date is YYYY-MM-DD (UTC).
type DailyVolume struct {
	Date              string  `json:"date"`
	DailyVolume       float64 `json:"daily_volume"`
	DailyRevenue      float64 `json:"daily_revenue"`
	DailyTransactions int64   `json:"daily_transactions"`
}

type TopMerchant struct {
	BusinessName     string  `json:"business_name"`
	IsLoyalMerchant  bool    `json:"is_loyal_merchant"`
	TotalVolume      float64 `json:"total_volume"`
	TotalRevenue     float64 `json:"total_revenue"`
	TransactionCount int64   `json:"transaction_count"`
}

type TopApp struct {
	AppName          string  `json:"app_name"`
	AppType          string  `json:"app_type"`
	IsFreeVersion    bool    `json:"is_free_version"`
	TotalVolume      float64 `json:"total_volume"`
	TotalRevenue     float64 `json:"total_revenue"`
	TransactionCount int64   `json:"transaction_count"`
}

type RecentTicket struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Priority        string    `json:"priority"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	BusinessName    string    `json:"business_name"`
	ContactName     string    `json:"contact_name"`
	IsLoyalMerchant bool      `json:"is_loyal_merchant"`
}
