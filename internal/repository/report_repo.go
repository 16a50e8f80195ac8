package repository

import (
	"context"
	"fmt"
	"time"

	"procure/internal/model"

	"gorm.io/gorm"
)

type ReportRepository interface {
	CountByStatus(ctx context.Context, status string, start, end time.Time) (int, error)
	ApprovedTotal(ctx context.Context, start, end time.Time) (string, error)
	MonthlySpending(ctx context.Context, start, end time.Time) ([]model.MonthlySpending, error)
	TopSpenders(ctx context.Context, start, end time.Time, limit int) ([]model.SpenderRanking, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) CountByStatus(ctx context.Context, status string, start, end time.Time) (int, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.PurchaseRequest{}).
		Where("created_at >= ? AND created_at <= ?", start, end)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return int(count), nil
}

func (r *reportRepository) ApprovedTotal(ctx context.Context, start, end time.Time) (string, error) {
	var result struct {
		Value string
	}
	if err := r.db.WithContext(ctx).Model(&model.PurchaseRequest{}).
		Select("COALESCE(CAST(SUM(amount) AS TEXT), '0') as value").
		Where("status = ? AND created_at >= ? AND created_at <= ?", model.StatusApproved, start, end).
		Scan(&result).Error; err != nil {
		return "", fmt.Errorf("failed to sum approved spend: %w", err)
	}
	return result.Value, nil
}

func (r *reportRepository) MonthlySpending(ctx context.Context, start, end time.Time) ([]model.MonthlySpending, error) {
	var buckets []model.MonthlySpending
	if err := r.db.WithContext(ctx).Model(&model.PurchaseRequest{}).
		Select("TO_CHAR(created_at, 'YYYY-MM') as month, COALESCE(CAST(SUM(amount) AS TEXT), '0') as total_amount, COUNT(*) as request_count").
		Where("status = ? AND created_at >= ? AND created_at <= ?", model.StatusApproved, start, end).
		Group("TO_CHAR(created_at, 'YYYY-MM')").
		Order("month").
		Scan(&buckets).Error; err != nil {
		return nil, fmt.Errorf("failed to query monthly spending: %w", err)
	}
	return buckets, nil
}

func (r *reportRepository) TopSpenders(ctx context.Context, start, end time.Time, limit int) ([]model.SpenderRanking, error) {
	var rankings []model.SpenderRanking
	if err := r.db.WithContext(ctx).Table("purchase_requests").
		Select("users.id as user_id, users.username as username, users.department as department, COUNT(purchase_requests.id) as request_count, COALESCE(CAST(SUM(purchase_requests.amount) AS TEXT), '0') as total_amount").
		Joins("JOIN users ON users.id = purchase_requests.created_by_id").
		Where("purchase_requests.status = ? AND purchase_requests.created_at >= ? AND purchase_requests.created_at <= ?", model.StatusApproved, start, end).
		Group("users.id, users.username, users.department").
		Order("SUM(purchase_requests.amount) DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top spenders: %w", err)
	}
	return rankings, nil
}
