package service

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

const (
	dateLayout       = "2006-01-02"
	reportWindowDays = 7
)

// DailyTotal sums the sales whose sale_date falls on date's calendar day in
// the reporting location.
func (s *Service) DailyTotal(ctx context.Context, date time.Time) (domain.DayTotal, error) {
	day := startOfDay(date, s.loc)
	sales, err := s.repo.QuerySales(ctx, store.SaleQuery{
		From:  day,
		To:    day.AddDate(0, 0, 1),
		Order: store.SaleOrderOldestFirst,
	})
	if err != nil {
		return domain.DayTotal{}, err
	}

	return domain.DayTotal{
		Date:        day.Format(dateLayout),
		DayName:     day.Format("Mon"),
		TotalAmount: sumTotals(sales),
		Count:       len(sales),
	}, nil
}

// WindowTotal sums sales from the start of start's day through the end of
// endInclusive's day. An inverted window is empty.
func (s *Service) WindowTotal(ctx context.Context, start time.Time, endInclusive time.Time) (decimal.Decimal, error) {
	sales, err := s.windowSales(ctx, start, endInclusive)
	if err != nil {
		return decimal.Zero, err
	}
	return sumTotals(sales), nil
}

func (s *Service) windowSales(ctx context.Context, start time.Time, endInclusive time.Time) ([]domain.Sale, error) {
	from := startOfDay(start, s.loc)
	to := startOfDay(endInclusive, s.loc).AddDate(0, 0, 1)
	if !from.Before(to) {
		return nil, nil
	}
	return s.repo.QuerySales(ctx, store.SaleQuery{From: from, To: to, Order: store.SaleOrderOldestFirst})
}

// LastNDaysSeries returns exactly n daily totals ending at anchor, oldest
// first. Days without sales are zero-filled.
func (s *Service) LastNDaysSeries(ctx context.Context, n int, anchor time.Time) ([]domain.DayTotal, error) {
	if n < 1 {
		return []domain.DayTotal{}, nil
	}

	last := startOfDay(anchor, s.loc)
	series := make([]domain.DayTotal, 0, n)
	for i := n - 1; i >= 0; i-- {
		day, err := s.DailyTotal(ctx, last.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		series = append(series, day)
	}
	return series, nil
}

// TopFlowers ranks flowers by units sold across all sales. Equal totals keep
// flower id order. A limit below one yields an empty ranking; the dashboard
// passes Options.TopFlowersLimit.
func (s *Service) TopFlowers(ctx context.Context, limit int) ([]domain.FlowerSales, error) {
	if limit < 1 {
		return []domain.FlowerSales{}, nil
	}

	sales, err := s.repo.QuerySales(ctx, store.SaleQuery{Order: store.SaleOrderOldestFirst})
	if err != nil {
		return nil, err
	}
	return rankFlowers(sales, limit), nil
}

func rankFlowers(sales []domain.Sale, limit int) []domain.FlowerSales {
	byFlower := make(map[int64]*domain.FlowerSales)
	for _, sale := range sales {
		entry, ok := byFlower[sale.FlowerID]
		if !ok {
			entry = &domain.FlowerSales{
				FlowerID:     sale.FlowerID,
				FlowerName:   sale.FlowerName,
				TotalRevenue: decimal.Zero,
			}
			byFlower[sale.FlowerID] = entry
		}
		entry.TotalQuantitySold += sale.Quantity
		entry.TotalRevenue = entry.TotalRevenue.Add(sale.TotalAmount)
	}

	ranked := make([]domain.FlowerSales, 0, len(byFlower))
	for _, entry := range byFlower {
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalQuantitySold == ranked[j].TotalQuantitySold {
			return ranked[i].FlowerID < ranked[j].FlowerID
		}
		return ranked[i].TotalQuantitySold > ranked[j].TotalQuantitySold
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// PaymentMethodBreakdown counts sales per payment method. Methods that were
// never used are absent.
func (s *Service) PaymentMethodBreakdown(ctx context.Context) (map[domain.PaymentMethod]int, error) {
	sales, err := s.repo.QuerySales(ctx, store.SaleQuery{Order: store.SaleOrderOldestFirst})
	if err != nil {
		return nil, err
	}
	return countPaymentMethods(sales), nil
}

func countPaymentMethods(sales []domain.Sale) map[domain.PaymentMethod]int {
	counts := make(map[domain.PaymentMethod]int, 3)
	for _, sale := range sales {
		counts[sale.PaymentMethod]++
	}
	return counts
}

// AggregateListStats totals a list of sales. The average is rounded to cents
// and is zero for an empty list.
func AggregateListStats(sales []domain.Sale) domain.SaleListStats {
	stats := domain.SaleListStats{
		Total:   decimal.Zero,
		Average: decimal.Zero,
	}
	if len(sales) == 0 {
		return stats
	}

	for _, sale := range sales {
		stats.TotalQuantity += sale.Quantity
	}
	stats.Total = sumTotals(sales)
	stats.Average = stats.Total.Div(decimal.NewFromInt(int64(len(sales)))).Round(2)
	return stats
}

// SalesReport builds the dashboard for the day anchor: today's sales, the
// trailing seven-day window and the all-time rankings.
//
// The week is the seven calendar days ending at anchor, anchor included.
// WeekTotal sums that window and AverageSale is WeekTotal divided by the
// window's sale count, so it reflects the last seven days rather than all
// history. Top flowers and payment methods cover every recorded sale.
func (s *Service) SalesReport(ctx context.Context, anchor time.Time) (domain.SalesReport, error) {
	day := startOfDay(anchor, s.loc)
	key := day.Format(dateLayout) + ":" + s.loc.String()
	generation := s.reportGeneration.Load()

	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[report-cache] WARN: get %s failed: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	today, err := s.repo.QuerySales(ctx, store.SaleQuery{
		From:  day,
		To:    day.AddDate(0, 0, 1),
		Order: store.SaleOrderNewestFirst,
	})
	if err != nil {
		return domain.SalesReport{}, err
	}

	week, err := s.windowSales(ctx, day.AddDate(0, 0, -(reportWindowDays-1)), day)
	if err != nil {
		return domain.SalesReport{}, err
	}
	series, err := s.LastNDaysSeries(ctx, reportWindowDays, day)
	if err != nil {
		return domain.SalesReport{}, err
	}
	top, err := s.TopFlowers(ctx, s.topFlowersLimit)
	if err != nil {
		return domain.SalesReport{}, err
	}
	methods, err := s.PaymentMethodBreakdown(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	customers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}

	weekStats := AggregateListStats(week)
	report := domain.SalesReport{
		Date:           day.Format(dateLayout),
		Timezone:       s.loc.String(),
		TodayTotal:     sumTotals(today),
		TodaySales:     today,
		WeekTotal:      weekStats.Total,
		WeekSalesCount: len(week),
		LastSevenDays:  series,
		TopFlowers:     top,
		PaymentMethods: methods,
		TotalCustomers: customers,
		AverageSale:    weekStats.Average,
	}

	// A write that landed while the report was being built has already
	// invalidated the cache; storing this snapshot would resurrect it.
	if s.reportGeneration.Load() != generation {
		return report, nil
	}
	if err := s.reports.Set(ctx, key, &report, s.reportCacheTTL); err != nil {
		log.Printf("[report-cache] WARN: set %s failed: %v", key, err)
	}
	return report, nil
}

func sumTotals(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.TotalAmount)
	}
	return total
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
