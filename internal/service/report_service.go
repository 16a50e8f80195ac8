package service

import (
	"context"
	"time"

	"procure/internal/model"
	"procure/internal/repository"
)

type ReportService interface {
	SpendingReport(ctx context.Context, startDate, endDate time.Time) (model.SpendingReport, error)
}

type reportService struct {
	repo repository.ReportRepository
}

func NewReportService(repo repository.ReportRepository) ReportService {
	return &reportService{repo: repo}
}

// SpendingReport aggregates request counts and approved spend into the
// finance summary for the given time bracket.
func (s *reportService) SpendingReport(ctx context.Context, startDate, endDate time.Time) (model.SpendingReport, error) {
	report := model.SpendingReport{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	total, err := s.repo.CountByStatus(ctx, "", startDate, endDate)
	if err != nil {
		return report, err
	}
	report.TotalRequests = total

	for status, target := range map[string]*int{
		model.StatusPending:  &report.PendingCount,
		model.StatusApproved: &report.ApprovedCount,
		model.StatusRejected: &report.RejectedCount,
	} {
		count, countErr := s.repo.CountByStatus(ctx, status, startDate, endDate)
		if countErr != nil {
			return report, countErr
		}
		*target = count
	}

	approvedTotal, err := s.repo.ApprovedTotal(ctx, startDate, endDate)
	if err != nil {
		return report, err
	}
	report.TotalApprovedAmount = approvedTotal

	monthly, err := s.repo.MonthlySpending(ctx, startDate, endDate)
	if err != nil {
		return report, err
	}
	report.MonthlySpending = monthly

	spenders, err := s.repo.TopSpenders(ctx, startDate, endDate, 5)
	if err != nil {
		return report, err
	}
	report.TopSpenders = spenders

	return report, nil
}
