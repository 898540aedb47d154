// Package pricing resolves what one consultation costs.
package pricing

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// ErrNoPrice is returned when neither the module nor the route table define
// a price.
var ErrNoPrice = eris.New("pricing: no price configured")

// DiscountFunc applies the subscription discount to a base price. It returns
// the discounted price and whether any discount was applied.
type DiscountFunc func(base model.Money) (model.Money, bool)

// Quote computes the charge for one search. rate is the subscription
// discount percentage reported by the subscription service.
func Quote(base model.Money, subscriptionActive bool, rate float64, fn DiscountFunc) model.PriceQuote {
	q := model.PriceQuote{BasePrice: base, FinalPrice: base}
	if !subscriptionActive || fn == nil || base <= 0 {
		return q
	}

	final, applied := fn(base)
	if !applied {
		return q
	}

	pct := rate
	if pct <= 0 && final < base {
		// Service applied a discount without reporting its rate.
		pct = float64(base-final) * 100 / float64(base)
	}
	if pct > 100 {
		pct = 100
	}
	if pct <= 0 {
		return q
	}

	q.DiscountPercent = pct
	q.FinalPrice = base.ApplyPercentOff(pct)
	return q
}

// RouteTable is the static fallback price per dashboard route.
type RouteTable map[string]model.Money

// ResolveBase picks the base price: the module's configured price when
// positive, otherwise the static price for route.
func ResolveBase(modulePrice model.Money, route string, table RouteTable) (model.Money, error) {
	if modulePrice > 0 {
		return modulePrice, nil
	}
	if p, ok := table[route]; ok && p > 0 {
		return p, nil
	}
	return 0, eris.Wrapf(ErrNoPrice, "route %s", route)
}

// TableFromFloats converts a config map of decimal prices.
func TableFromFloats(m map[string]float64) RouteTable {
	t := make(RouteTable, len(m))
	for route, v := range m {
		t[route] = model.Reais(v)
	}
	return t
}

// routeFile is the on-disk layout of a route price table:
//
//	routes:
//	  /dashboard/consultar-nome-completo: "7,90"
type routeFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadRouteTable reads a YAML route price table.
func LoadRouteTable(path string) (RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: read %s", path)
	}
	return ParseRouteTable(data)
}

// ParseRouteTable decodes YAML route prices. Values may use "," or "." as
// decimal separator.
func ParseRouteTable(data []byte) (RouteTable, error) {
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "pricing: parse route table")
	}
	t := make(RouteTable, len(f.Routes))
	for route, raw := range f.Routes {
		p, err := model.ParseMoney(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "pricing: route %s", route)
		}
		t[route] = p
	}
	return t, nil
}

// Merge returns a table with the entries of t overridden by other.
func (t RouteTable) Merge(other RouteTable) RouteTable {
	out := make(RouteTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
