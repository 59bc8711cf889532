package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// ReportStore runs the reporting aggregates.
type ReportStore interface {
	RevenueByMethod(ctx context.Context, from, to time.Time) ([]repository.MethodRevenue, error)
	CountOrders(ctx context.Context, status model.OrderStatus) (int64, error)
	SumRevenue(ctx context.Context, from, to *time.Time) (decimal.Decimal, error)
	DailyTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
	TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error)
}

const (
	dateLayout       = "2006-01-02"
	maxReportDays    = 92
	defaultSalesDays = 7
	dashboardTop     = 5
	maxTopProducts   = 50
	rangeParallelism = 4
)

// ReportService answers revenue and statistics questions.  Days are UTC.
type ReportService struct {
	store ReportStore
	now   func() time.Time
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Daily reports paid orders for one day; an empty date means today.
func (s *ReportService) Daily(ctx context.Context, date string) (model.RevenueReport, error) {
	day, err := s.parseDay(date, s.today())
	if err != nil {
		return model.RevenueReport{}, err
	}
	return s.daily(ctx, day)
}

// Range reports every day in [start, end], both inclusive.
func (s *ReportService) Range(ctx context.Context, start, end string) ([]model.RevenueReport, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return nil, validation("start and end are required")
	}
	from, err := s.parseDay(start, time.Time{})
	if err != nil {
		return nil, err
	}
	to, err := s.parseDay(end, time.Time{})
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, validation("end must not be before start")
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxReportDays {
		return nil, validation("range must not exceed %d days", maxReportDays)
	}

	out := make([]model.RevenueReport, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rangeParallelism)
	for i := 0; i < days; i++ {
		i := i
		g.Go(func() error {
			r, err := s.daily(gctx, from.AddDate(0, 0, i))
			out[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReportService) daily(ctx context.Context, day time.Time) (model.RevenueReport, error) {
	rows, err := s.store.RevenueByMethod(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return model.RevenueReport{}, err
	}
	r := model.RevenueReport{
		Date:         day.Format(dateLayout),
		TotalRevenue: decimal.Zero,
		PaymentMethodBreakdown: model.PaymentBreakdown{
			Cash:         decimal.Zero,
			BankTransfer: decimal.Zero,
		},
	}
	for _, m := range rows {
		r.TotalOrders += m.Orders
		r.TotalRevenue = r.TotalRevenue.Add(m.Revenue)
		// orders paid before a method was recorded count as cash
		if m.Method != nil && *m.Method == model.PaymentBankTransfer {
			r.PaymentMethodBreakdown.BankTransfer = r.PaymentMethodBreakdown.BankTransfer.Add(m.Revenue)
		} else {
			r.PaymentMethodBreakdown.Cash = r.PaymentMethodBreakdown.Cash.Add(m.Revenue)
		}
	}
	return r, nil
}

// Dashboard gathers the overview figures concurrently.
func (s *ReportService) Dashboard(ctx context.Context) (model.Dashboard, error) {
	var d model.Dashboard
	today := s.today()
	tomorrow := today.AddDate(0, 0, 1)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, status model.OrderStatus) {
		g.Go(func() error {
			n, err := s.store.CountOrders(gctx, status)
			*dst = n
			return err
		})
	}
	count(&d.TotalOrders, "")
	count(&d.PendingOrders, model.OrderPendingPayment)
	count(&d.PaidOrders, model.OrderPaid)
	count(&d.CancelledOrders, model.OrderCancelled)
	g.Go(func() error {
		v, err := s.store.SumRevenue(gctx, nil, nil)
		d.TotalRevenue = v
		return err
	})
	g.Go(func() error {
		v, err := s.store.SumRevenue(gctx, &today, &tomorrow)
		d.TodayRevenue = v
		return err
	})
	g.Go(func() error {
		v, err := s.store.TopProducts(gctx, dashboardTop)
		d.TopProducts = v
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Dashboard{}, err
	}
	return d, nil
}

// Sales returns one total per day in [start, end], zero-filled.  Without
// bounds it covers the last seven days including today.
func (s *ReportService) Sales(ctx context.Context, start, end string) ([]model.DailyTotal, error) {
	to, err := s.parseDay(end, s.today())
	if err != nil {
		return nil, err
	}
	from, err := s.parseDay(start, to.AddDate(0, 0, -(defaultSalesDays-1)))
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, validation("end must not be before start")
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxReportDays {
		return nil, validation("range must not exceed %d days", maxReportDays)
	}
	totals, err := s.store.DailyTotals(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	out := make([]model.DailyTotal, 0, days)
	for i := 0; i < days; i++ {
		key := from.AddDate(0, 0, i).Format(dateLayout)
		v, ok := totals[key]
		if !ok {
			v = decimal.Zero
		}
		out = append(out, model.DailyTotal{Date: key, Total: v})
	}
	return out, nil
}

// TopProducts ranks products by paid quantity.
func (s *ReportService) TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	if limit <= 0 {
		limit = dashboardTop
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}
	return s.store.TopProducts(ctx, limit)
}

func (s *ReportService) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func (s *ReportService) parseDay(v string, def time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, validation("invalid date %q, expected YYYY-MM-DD", v)
	}
	return t.UTC(), nil
}
