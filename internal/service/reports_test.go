package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

type stubReports struct {
	mu      sync.Mutex
	byDay   map[string][]repository.MethodRevenue
	totals  map[string]decimal.Decimal
	counts  map[model.OrderStatus]int64
	revenue decimal.Decimal
	topN    int
	err     error
}

func (s *stubReports) RevenueByMethod(_ context.Context, from, _ time.Time) ([]repository.MethodRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byDay[from.Format(dateLayout)], s.err
}

func (s *stubReports) CountOrders(_ context.Context, status model.OrderStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[status], s.err
}

func (s *stubReports) SumRevenue(_ context.Context, from, _ *time.Time) (decimal.Decimal, error) {
	if from != nil {
		return decimal.NewFromInt(90000), s.err
	}
	return s.revenue, s.err
}

func (s *stubReports) DailyTotals(context.Context, time.Time, time.Time) (map[string]decimal.Decimal, error) {
	return s.totals, s.err
}

func (s *stubReports) TopProducts(_ context.Context, limit int) ([]model.TopProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topN = limit
	return []model.TopProduct{{ProductID: 1, ProductName: "Latte", Quantity: 3}}, s.err
}

func newReportFixture(store *stubReports) *ReportService {
	svc := NewReportService(store)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC) }
	return svc
}

func TestDailyBreakdown(t *testing.T) {
	bank := model.PaymentBankTransfer
	cash := model.PaymentCash
	store := &stubReports{byDay: map[string][]repository.MethodRevenue{
		"2024-03-10": {
			{Method: &cash, Orders: 2, Revenue: dec("90000")},
			{Method: &bank, Orders: 1, Revenue: dec("50000")},
			{Method: nil, Orders: 1, Revenue: dec("10000")},
		},
	}}
	svc := newReportFixture(store)

	r, err := svc.Daily(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", r.Date)
	assert.Equal(t, 4, r.TotalOrders)
	assert.Equal(t, "150000", r.TotalRevenue.String())
	assert.Equal(t, "100000", r.PaymentMethodBreakdown.Cash.String())
	assert.Equal(t, "50000", r.PaymentMethodBreakdown.BankTransfer.String())

	empty, err := svc.Daily(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalOrders)
	assert.True(t, empty.TotalRevenue.IsZero())

	_, err = svc.Daily(context.Background(), "10/03/2024")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRangeKeepsDayOrder(t *testing.T) {
	cash := model.PaymentCash
	store := &stubReports{byDay: map[string][]repository.MethodRevenue{
		"2024-03-02": {{Method: &cash, Orders: 1, Revenue: dec("20000")}},
	}}
	svc := newReportFixture(store)

	out, err := svc.Range(context.Background(), "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, r := range out {
		assert.Equal(t, time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC).Format(dateLayout), r.Date)
	}
	assert.Equal(t, 1, out[1].TotalOrders)

	_, err = svc.Range(context.Background(), "2024-03-05", "2024-03-01")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Range(context.Background(), "", "2024-03-01")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Range(context.Background(), "2024-01-01", "2024-12-31")
	assert.ErrorIs(t, err, ErrValidation)

	store.err = errBoom
	_, err = svc.Range(context.Background(), "2024-03-01", "2024-03-02")
	assert.ErrorIs(t, err, errBoom)
}

func TestSalesZeroFills(t *testing.T) {
	store := &stubReports{totals: map[string]decimal.Decimal{"2024-03-08": dec("45000")}}
	svc := newReportFixture(store)

	out, err := svc.Sales(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, out, defaultSalesDays)
	assert.Equal(t, "2024-03-04", out[0].Date)
	assert.Equal(t, "2024-03-10", out[6].Date)
	assert.Equal(t, "45000", out[4].Total.String())
	assert.True(t, out[0].Total.IsZero())
}

func TestDashboard(t *testing.T) {
	store := &stubReports{
		counts:  map[model.OrderStatus]int64{"": 6, model.OrderPendingPayment: 1, model.OrderPaid: 4, model.OrderCancelled: 1},
		revenue: dec("560000"),
	}
	svc := newReportFixture(store)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 6, d.TotalOrders)
	assert.EqualValues(t, 4, d.PaidOrders)
	assert.Equal(t, "560000", d.TotalRevenue.String())
	assert.Equal(t, "90000", d.TodayRevenue.String())
	assert.Len(t, d.TopProducts, 1)
	assert.Equal(t, dashboardTop, store.topN)

	_, err = svc.TopProducts(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, maxTopProducts, store.topN)
}
