package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bakerypos/backend/internal/domain"
	"bakerypos/backend/internal/store"
)

const dateLayout = "2006-01-02"

const (
	PeriodToday   = "today"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// SalesReport summarises receipts for a named period or an inclusive
// from..to date range. With no arguments it reports today.
func (s *Service) SalesReport(ctx context.Context, period string, from string, to string) (domain.SalesReport, error) {
	start, end, err := reportRange(s.now().UTC(), period, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}

	key := fmt.Sprintf("sales:%s:%s", start.Format(dateLayout), end.Format(dateLayout))
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	} else if ok {
		return *cached, nil
	}

	receipts, err := s.repo.ListReceipts(ctx, start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}
	sales, err := s.repo.ProductSales(ctx, start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		From:         start.Format(dateLayout),
		To:           end.Add(-24 * time.Hour).Format(dateLayout),
		ReceiptCount: len(receipts),
		Products:     sales,
		Receipts:     receipts,
	}
	for _, r := range receipts {
		report.GrossCents += r.SubtotalCents
		report.DiscountCents += r.DiscountCents
		report.TaxCents += r.TaxCents
		report.NetCents += r.TotalCents
	}
	for _, row := range sales {
		report.ItemsSold += row.QtySold
	}
	if len(sales) > 0 {
		top := sales[0]
		report.TopProduct = &top
	}

	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return report, nil
}

// reportRange returns the half-open interval [start, end) in UTC.
func reportRange(now time.Time, period string, from string, to string) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	switch strings.ToLower(strings.TrimSpace(period)) {
	case "":
		if from == "" && to == "" {
			return today, today.AddDate(0, 0, 1), nil
		}
	case PeriodToday:
		return today, today.AddDate(0, 0, 1), nil
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return monday, monday.AddDate(0, 0, 7), nil
	case PeriodMonthly:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("period %q: %w", period, store.ErrInvalidInput)
	}

	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both from and to are required: %w", store.ErrInvalidInput)
	}
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from %q: %w", from, store.ErrInvalidInput)
	}
	last, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to %q: %w", to, store.ErrInvalidInput)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("to is before from: %w", store.ErrInvalidInput)
	}
	return start, last.AddDate(0, 0, 1), nil
}
