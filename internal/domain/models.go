package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord is the normalized, persisted form of one imported sales row.
// TotalPrice is the authoritative monetary figure; UnitPrice and Quantity
// exist so a missing total can be derived at import time.
type SaleRecord struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Date       time.Time       `json:"date"`
	Category   string          `json:"category"`
	Product    string          `json:"product"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ImportStats summarizes one import run. Rejected rows are counted, never
// enumerated back to the caller.
type ImportStats struct {
	RowsSeen     int `json:"rows_seen"`
	RowsAccepted int `json:"rows_accepted"`
	RowsRejected int `json:"rows_rejected"`
}

type ImportResponse struct {
	FileName string      `json:"file_name"`
	Stats    ImportStats `json:"stats"`
}

// DashboardSummary carries presentation-ready numbers: monetary values are
// rounded to two decimals here and nowhere earlier.
type DashboardSummary struct {
	TotalRevenue  float64            `json:"total_revenue"`
	OrderCount    int                `json:"order_count"`
	AvgOrderValue float64            `json:"avg_order_value"`
	BestProduct   string             `json:"best_product"`
	SalesTrend    map[string]float64 `json:"sales_trend"`
	CategorySales map[string]float64 `json:"category_sales"`
}

type AnalyticsReport struct {
	MonthlySales       map[string]float64 `json:"monthly_sales"`
	CategorySales      map[string]float64 `json:"category_sales"`
	ProductPerformance []ProductRevenue   `json:"product_performance"`
}

// ProductRevenue keeps the top-N ordering explicit; a JSON object would
// lose it.
type ProductRevenue struct {
	Product string  `json:"product"`
	Revenue float64 `json:"revenue"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Email     string
	Password  string
	Active    bool
	CreatedAt time.Time
}
