package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	called := false
	discount := func(base model.Money) (model.Money, bool) {
		called = true
		return 8500, true
	}

	tests := []struct {
		name   string
		base   model.Money
		active bool
		rate   float64
		fn     DiscountFunc
		want   model.PriceQuote
	}{
		{
			name: "no subscription",
			base: 10000, active: false, rate: 15, fn: discount,
			want: model.PriceQuote{BasePrice: 10000, DiscountPercent: 0, FinalPrice: 10000},
		},
		{
			name: "subscription discount applied",
			base: 10000, active: true, rate: 15, fn: discount,
			want: model.PriceQuote{BasePrice: 10000, DiscountPercent: 15, FinalPrice: 8500},
		},
		{
			name: "subscription without discount",
			base: 10000, active: true, rate: 15,
			fn:   func(base model.Money) (model.Money, bool) { return base, false },
			want: model.PriceQuote{BasePrice: 10000, DiscountPercent: 0, FinalPrice: 10000},
		},
		{
			name: "rate derived from discounted price",
			base: 10000, active: true, rate: 0, fn: discount,
			want: model.PriceQuote{BasePrice: 10000, DiscountPercent: 15, FinalPrice: 8500},
		},
		{
			name: "half-up rounding",
			base: 1999, active: true, rate: 15,
			fn:   func(base model.Money) (model.Money, bool) { return 1699, true },
			want: model.PriceQuote{BasePrice: 1999, DiscountPercent: 15, FinalPrice: 1699},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(tt.base, tt.active, tt.rate, tt.fn)
			assert.Equal(t, tt.want.BasePrice, got.BasePrice)
			assert.InDelta(t, tt.want.DiscountPercent, got.DiscountPercent, 0.0001)
			assert.Equal(t, tt.want.FinalPrice, got.FinalPrice)
			assert.LessOrEqual(t, got.FinalPrice, got.BasePrice)
		})
	}

	called = false
	Quote(10000, false, 15, discount)
	assert.False(t, called, "discount service is not consulted without a subscription")
}

func TestResolveBase(t *testing.T) {
	t.Parallel()

	table := RouteTable{"/dashboard/consultar-nome-completo": 790}

	p, err := ResolveBase(1250, "/dashboard/consultar-nome-completo", table)
	require.NoError(t, err)
	assert.Equal(t, model.Money(1250), p)

	p, err = ResolveBase(0, "/dashboard/consultar-nome-completo", table)
	require.NoError(t, err)
	assert.Equal(t, model.Money(790), p)

	p, err = ResolveBase(-5, "/dashboard/consultar-nome-completo", table)
	require.NoError(t, err)
	assert.Equal(t, model.Money(790), p)

	_, err = ResolveBase(0, "/dashboard/unknown", table)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestLoadRouteTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  /dashboard/consultar-nome-completo: "7,90"
  /dashboard/consultar-cpf: "2.50"
`), 0o644))

	table, err := LoadRouteTable(path)
	require.NoError(t, err)
	assert.Equal(t, model.Money(790), table["/dashboard/consultar-nome-completo"])
	assert.Equal(t, model.Money(250), table["/dashboard/consultar-cpf"])

	_, err = LoadRouteTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseRouteTable([]byte("routes:\n  /x: abc\n"))
	assert.Error(t, err)
}

func TestRouteTable_Merge(t *testing.T) {
	t.Parallel()

	base := TableFromFloats(map[string]float64{"/a": 1.5, "/b": 2})
	merged := base.Merge(RouteTable{"/b": 300})
	assert.Equal(t, model.Money(150), merged["/a"])
	assert.Equal(t, model.Money(300), merged["/b"])
}
