package store

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money is rendered as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Enumerations stored as text.
var (
	MerchantStatuses    = []string{"pending", "under_review", "active", "suspended"}
	TransactionTypes    = []string{"payment", "refund", "chargeback", "adjustment"}
	TransactionStatuses = []string{"pending", "completed", "failed", "refunded"}
	AppStatuses         = []string{"active", "inactive", "maintenance"}
	TicketPriorities    = []string{"low", "medium", "high"}
	TicketStatuses      = []string{"open", "in_progress", "resolved", "closed"}
)

// Defaults applied on insert.
var (
	DefaultFeeRate        = decimal.RequireFromString("0.0290")
	DefaultAppRevenueRate = decimal.RequireFromString("0.0020")
)

const (
	DefaultCountry           = "US"
	DefaultMerchantStatus    = "pending"
	DefaultTransactionType   = "payment"
	DefaultTransactionStatus = "completed"
	DefaultAppTxType         = "app_payment"
	DefaultAppStatus         = "active"
	DefaultTicketPriority    = "medium"
	DefaultTicketStatus      = "open"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Merchant struct {
	ID                     string              `json:"id"`
	BusinessName           string              `json:"business_name"`
	ContactName            string              `json:"contact_name"`
	Email                  string              `json:"email"`
	Phone                  *string             `json:"phone"`
	BusinessType           *string             `json:"business_type"`
	Website                *string             `json:"website"`
	Address                *string             `json:"address"`
	City                   *string             `json:"city"`
	State                  *string             `json:"state"`
	ZipCode                *string             `json:"zip_code"`
	Country                string              `json:"country"`
	Status                 string              `json:"status"`
	OnboardingStep         int64               `json:"onboarding_step"`
	MonthlyProcessingLimit decimal.NullDecimal `json:"monthly_processing_limit"`
	ProcessingFeeRate      decimal.NullDecimal `json:"processing_fee_rate"`
	IsLoyalMerchant        bool                `json:"is_loyal_merchant"`
	LoyalSince             *time.Time          `json:"loyal_since"`
	ApprovedAt             *time.Time          `json:"approved_at"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// FeeRate is the merchant's processing rate, DefaultFeeRate when unset.
func (m *Merchant) FeeRate() decimal.Decimal {
	if m.ProcessingFeeRate.Valid {
		return m.ProcessingFeeRate.Decimal
	}
	return DefaultFeeRate
}

// Transaction is a processing transaction. The merchant fields are filled
// on list reads only.
type Transaction struct {
	ID                string          `json:"id"`
	MerchantID        string          `json:"merchant_id"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	TransactionFee    decimal.Decimal `json:"transaction_fee"`
	OurRevenue        decimal.Decimal `json:"our_revenue"`
	TransactionType   string          `json:"transaction_type"`
	TransactionStatus string          `json:"transaction_status"`
	ReferenceNumber   *string         `json:"reference_number"`
	CustomerEmail     *string         `json:"customer_email"`
	Description       *string         `json:"description"`
	IsCashTransaction bool            `json:"is_cash_transaction"`
	ProcessedAt       time.Time       `json:"processed_at"`
	CreatedAt         time.Time       `json:"created_at"`

	BusinessName    *string `json:"business_name,omitempty"`
	ContactName     *string `json:"contact_name,omitempty"`
	IsLoyalMerchant *bool   `json:"is_loyal_merchant,omitempty"`
}

type MobileApp struct {
	ID             string          `json:"id"`
	AppName        string          `json:"app_name"`
	AppType        string          `json:"app_type"`
	Description    *string         `json:"description"`
	Version        *string         `json:"version"`
	Status         string          `json:"status"`
	IsFreeVersion  bool            `json:"is_free_version"`
	RevenueRate    decimal.Decimal `json:"revenue_rate"`
	TotalDownloads int64           `json:"total_downloads"`
	ActiveUsers    int64           `json:"active_users"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AppSummary is a mobile app with its transaction aggregates.
type AppSummary struct {
	MobileApp
	TotalTransactions       int64            `json:"total_transactions"`
	TotalRevenueAmount      decimal.Decimal  `json:"total_revenue_amount"`
	TotalOurRevenue         decimal.Decimal  `json:"total_our_revenue"`
	FreeVersionTransactions int64            `json:"free_version_transactions"`
	RecentTransactionsCount int64            `json:"recent_transactions_count"`
	RecentTransactions      []AppTransaction `json:"recent_transactions"`
}

type AppTransaction struct {
	ID                       string          `json:"id"`
	AppID                    string          `json:"app_id"`
	TransactionAmount        decimal.Decimal `json:"transaction_amount"`
	RevenueRate              decimal.Decimal `json:"revenue_rate"`
	OurRevenue               decimal.Decimal `json:"our_revenue"`
	TransactionType          string          `json:"transaction_type"`
	TransactionStatus        string          `json:"transaction_status"`
	ReferenceNumber          *string         `json:"reference_number"`
	UserEmail                *string         `json:"user_email"`
	Description              *string         `json:"description"`
	DeviceInfo               JSONText        `json:"device_info"`
	AppVersion               *string         `json:"app_version"`
	IsFreeVersionTransaction bool            `json:"is_free_version_transaction"`
	ProcessedAt              time.Time       `json:"processed_at"`
	CreatedAt                time.Time       `json:"created_at"`

	AppName           *string `json:"app_name,omitempty"`
	AppType           *string `json:"app_type,omitempty"`
	AppHasFreeVersion *bool   `json:"app_has_free_version,omitempty"`
}

type SupportTicket struct {
	ID          string     `json:"id"`
	MerchantID  string     `json:"merchant_id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Category    *string    `json:"category"`
	AssignedTo  *string    `json:"assigned_to"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	BusinessName  *string `json:"business_name,omitempty"`
	ContactName   *string `json:"contact_name,omitempty"`
	MerchantEmail *string `json:"merchant_email,omitempty"`

	Responses []SupportResponse `json:"responses,omitempty"`
}

type SupportResponse struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	ResponseText    string    `json:"response_text"`
	IsStaffResponse bool      `json:"is_staff_response"`
	ResponderName   *string   `json:"responder_name"`
	ResponderEmail  *string   `json:"responder_email"`
	CreatedAt       time.Time `json:"created_at"`
}

// JSONText is a nullable JSON document column.
type JSONText []byte

func (j JSONText) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONText) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], b...)
	return nil
}

func (j JSONText) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSONText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONText(v)
	default:
		return fmt.Errorf("JSONText: cannot scan %T", src)
	}
	if len(*j) > 0 && !json.Valid(*j) {
		return fmt.Errorf("JSONText: invalid document")
	}
	return nil
}

// Ptr returns a pointer to v, or nil for the zero value.
func Ptr[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
