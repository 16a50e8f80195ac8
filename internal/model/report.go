package model

import (
	"time"
)

// SpendingReport aggregates request counts and approved spend for finance
type SpendingReport struct {
	TotalRequests       int               `json:"total_requests"`
	PendingCount        int               `json:"pending_count"`
	ApprovedCount       int               `json:"approved_count"`
	RejectedCount       int               `json:"rejected_count"`
	TotalApprovedAmount string            `json:"total_approved_amount"`
	MonthlySpending     []MonthlySpending `json:"monthly_spending"`
	TopSpenders         []SpenderRanking  `json:"top_spenders"`
	TimeRangeStartDate  time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate    time.Time         `json:"time_range_end_date"`
}

// MonthlySpending is one month's approved spend bucket
type MonthlySpending struct {
	Month        string `json:"month"`
	TotalAmount  string `json:"total_amount"`
	RequestCount int    `json:"request_count"`
}

// SpenderRanking ranks requesters by accumulated approved spend
type SpenderRanking struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Department   string `json:"department"`
	RequestCount int    `json:"request_count"`
	TotalAmount  string `json:"total_amount"`
}
