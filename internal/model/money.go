package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Money is an amount in centavos. Arithmetic stays in integers so that
// ledger splits always add up exactly.
type Money int64

// Reais builds a Money value from a decimal amount, rounding half-up to the
// nearest centavo.
func Reais(v float64) Money {
	m, err := parseDecimal(strconv.FormatFloat(v, 'f', -1, 64))
	if err != nil {
		return Money(math.Floor(v*100 + 0.5))
	}
	return m
}

// Float returns the decimal value (12.5 for R$ 12,50).
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders the amount the way the dashboard shows prices: "R$ 12,50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "R$ " + strconv.FormatInt(v/100, 10) + "," + twoDigits(v%100)
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// MarshalJSON encodes the amount as a decimal number with two places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', 2, 64)), nil
}

// UnmarshalJSON accepts numbers and strings ("12,50", "12.50", "R$ 12,50").
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return eris.Wrap(err, "money: decode")
	}
	v, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney converts the loosely typed prices returned by the dashboard
// backend into Money. Strings may use either "," or "." as the decimal
// separator and may carry an "R$" prefix.
func ParseMoney(v any) (Money, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case Money:
		return x, nil
	case int:
		return Money(int64(x) * 100), nil
	case int64:
		return Money(x * 100), nil
	case float64:
		return Reais(x), nil
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseMoneyString(x)
	default:
		return 0, eris.Errorf("money: unsupported type %T", v)
	}
}

func parseMoneyString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}
	return parseDecimal(s)
}

// parseDecimal parses a plain decimal string exactly, rounding half-up at the
// third fractional digit.
func parseDecimal(s string) (Money, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "money: parse %q", s)
		}
		return parseDecimal(strconv.FormatFloat(f, 'f', -1, 64))
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "money: parse %q", s)
	}
	for _, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, eris.Errorf("money: parse %q: invalid fraction", s)
		}
	}

	fracPart += "000"
	cents := int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
	if fracPart[2] >= '5' {
		cents++
	}

	total := whole*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

// ApplyPercentOff returns m reduced by pct percent, rounded half-up to the
// centavo. pct is clamped to [0, 100].
func (m Money) ApplyPercentOff(pct float64) Money {
	if pct <= 0 {
		return m
	}
	if pct >= 100 {
		return 0
	}
	// Work in basis points so 15% is exactly 1500.
	bp := int64(math.Floor(pct*100 + 0.5))
	return Money((int64(m)*(10000-bp) + 5000) / 10000)
}
