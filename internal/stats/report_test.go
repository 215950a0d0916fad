package stats

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
)

type fakeSales struct {
	sales []model.Sale
	err   error
}

func (f fakeSales) ListSales(context.Context) ([]model.Sale, error) {
	return f.sales, f.err
}

func TestBuildDashboard(t *testing.T) {
	now := mustInstant(t, "2024-03-01T23:00:00Z")
	src := fakeSales{sales: []model.Sale{
		sale(t, "2024-03-01", "100", 2, "b1", "X", "u1", "Ana"),
		sale(t, "2024-02-10", "30", 1, "b2", "Y", "u2", "Bruno"),
	}}
	d, err := BuildDashboard(context.Background(), src, now, DefaultOptions())
	if err != nil {
		t.Fatalf("build dashboard: %v", err)
	}
	if d.SaleCount != 2 || !d.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected dashboard meta: %+v", d)
	}
	if d.Summary.Today.Count != 1 {
		t.Fatalf("expected one sale today, got %d", d.Summary.Today.Count)
	}
}

func TestBuildDashboardFailsAsUnit(t *testing.T) {
	boom := errors.New("boom")
	d, err := BuildDashboard(context.Background(), fakeSales{err: boom}, time.Now(), DefaultOptions())
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if d.SaleCount != 0 || d.Summary.TopBooks != nil {
		t.Fatalf("expected empty dashboard on error")
	}
}

func TestRenderDashboard(t *testing.T) {
	now := mustInstant(t, "2024-03-01T23:00:00Z")
	sales := []model.Sale{
		sale(t, "2024-03-01", "1234.5", 2, "b1", "Dom Casmurro", "u1", "Ana"),
		sale(t, "2024-02-28", "50", 1, "b2", "Iracema", "u2", "Bruno"),
	}
	d := Dashboard{Summary: Summarize(sales, now, DefaultOptions()), SaleCount: 2, GeneratedAt: now}
	var buf bytes.Buffer
	if err := RenderDashboard(&buf, d, RenderOptions{Currency: "R$", Width: 70}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sales today", "R$ 1.234,50", "Best seller", "Dom Casmurro", "Top sellers", "Revenue by day"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   string
		sym  string
		want string
	}{
		{"0", "R$", "R$ 0,00"},
		{"150", "R$", "R$ 150,00"},
		{"1234.5", "R$", "R$ 1.234,50"},
		{"1234567.891", "$", "$ 1.234.567,89"},
		{"-12.3", "", "-12,30"},
	}
	for _, c := range cases {
		if got := FormatMoney(decimal.RequireFromString(c.in), c.sym); got != c.want {
			t.Fatalf("FormatMoney(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}
