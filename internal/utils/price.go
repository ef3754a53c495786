package utils

import (
  "fmt"
  "strconv"
  "strings"
)

var currencySymbols = map[string]string{
  "£": "GBP",
  "$": "USD",
  "€": "EUR",
}

// ParsePrice extracts an amount and ISO currency code from a raw scraped
// price string such as "£1,024.00", "$ 499", or "1299.99 EUR". An empty
// string parses to zero with the empty currency so callers can fall back to
// their default.
func ParsePrice(raw string) (float64, string, error) {
  raw = strings.TrimSpace(raw)
  if raw == "" {
    return 0, "", nil
  }

  currency := ""
  for symbol, code := range currencySymbols {
    if strings.Contains(raw, symbol) {
      currency = code
      raw = strings.ReplaceAll(raw, symbol, "")
      break
    }
  }

  var digits strings.Builder
  for _, r := range raw {
    switch {
    case r >= '0' && r <= '9', r == '.':
      digits.WriteRune(r)
    case r == ',', r == ' ':
      // thousands separators
    case r >= 'A' && r <= 'Z':
      // trailing currency code, e.g. "1299.99 EUR"
    default:
      return 0, "", fmt.Errorf("unparseable price %q", strings.TrimSpace(raw))
    }
  }
  if currency == "" {
    for _, code := range []string{"GBP", "USD", "EUR"} {
      if strings.Contains(raw, code) {
        currency = code
        break
      }
    }
  }

  numeric := digits.String()
  if numeric == "" {
    return 0, "", fmt.Errorf("no digits in price %q", raw)
  }
  amount, err := strconv.ParseFloat(numeric, 64)
  if err != nil {
    return 0, "", fmt.Errorf("unparseable price %q: %w", raw, err)
  }
  return amount, currency, nil
}
