package service

import (
	"context"
	"testing"
	"time"

	"procure/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReportRepo struct {
	counts map[string]int
}

func (r *mockReportRepo) CountByStatus(ctx context.Context, status string, start, end time.Time) (int, error) {
	return r.counts[status], nil
}

func (r *mockReportRepo) ApprovedTotal(ctx context.Context, start, end time.Time) (string, error) {
	return "12500.00", nil
}

func (r *mockReportRepo) MonthlySpending(ctx context.Context, start, end time.Time) ([]model.MonthlySpending, error) {
	return []model.MonthlySpending{
		{Month: "2026-01", TotalAmount: "4000.00", RequestCount: 2},
		{Month: "2026-02", TotalAmount: "8500.00", RequestCount: 3},
	}, nil
}

func (r *mockReportRepo) TopSpenders(ctx context.Context, start, end time.Time, limit int) ([]model.SpenderRanking, error) {
	return []model.SpenderRanking{
		{Username: "jdoe", RequestCount: 3, TotalAmount: "9000.00"},
	}, nil
}

func TestSpendingReport(t *testing.T) {
	repo := &mockReportRepo{counts: map[string]int{
		"":                   10,
		model.StatusPending:  3,
		model.StatusApproved: 5,
		model.StatusRejected: 2,
	}}
	svc := NewReportService(repo)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	report, err := svc.SpendingReport(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalRequests)
	assert.Equal(t, 3, report.PendingCount)
	assert.Equal(t, 5, report.ApprovedCount)
	assert.Equal(t, 2, report.RejectedCount)
	assert.Equal(t, "12500.00", report.TotalApprovedAmount)
	require.Len(t, report.MonthlySpending, 2)
	assert.Equal(t, "2026-01", report.MonthlySpending[0].Month)
	require.Len(t, report.TopSpenders, 1)
	assert.Equal(t, "jdoe", report.TopSpenders[0].Username)
	assert.Equal(t, start, report.TimeRangeStartDate)
}
