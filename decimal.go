package carteira

import (
	"strings"

	"github.com/shopspring/decimal"
)

// newDecimal is a convenient factory for decimal.Decimal.
func newDecimal[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float32:
		return decimal.NewFromFloat32(v)
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	default:
		panic("unsupported type")
	}
}

// placeholders are inputs that mean "no value" rather than zero.
var placeholders = map[string]bool{
	"": true, "-": true, "--": true, "n/a": true, "na": true,
	"nan": true, "none": true, "null": true, "#n/d": true,
}

// ParseDecimal parses numeric text of unknown locale into a decimal.
//
// It is a total function: placeholder, empty or malformed input yields
// zero, never an error. The separator rule is fixed and applied
// uniformly: when both '.' and ',' appear, '.' is a thousands separator
// and ',' is the decimal mark; a lone ',' is a decimal mark; a lone '.'
// is a decimal mark. Stray quotes, currency prefixes and spaces are
// stripped before parsing.
func ParseDecimal(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"R$", "US$", "$", "€"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if placeholders[strings.ToLower(s)] {
		return decimal.Zero
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
