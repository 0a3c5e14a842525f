package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

var (
	reCurrencyPrefix = regexp.MustCompile(`(?i)^(?:[$€£₹¥]|rs\.?|inr|usd|eur|gbp|cad|aud)\s*`)
	reCurrencySuffix = regexp.MustCompile(`(?i)\s*(?:[$€£₹¥]|inr|usd|eur|gbp|cad|aud)$`)
	reThousands      = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	reDecimal        = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	nullWords        = map[string]struct{}{"": {}, "null": {}, "none": {}, "n/a": {}, "na": {}, "-": {}}
)

// SanitizeInvoiceJSON lightly normalizes a model response before schema validation:
//   - drops keys that are not record columns
//   - parses money strings such as "$45.00" or "1,234.50" into numbers
//   - turns numeric ids and names into strings
//   - stringifies scalar values inside line-item objects
//   - wraps a lone object where a list is expected
//
// It never invents required fields; a missing one still fails validation.
func SanitizeInvoiceJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: document is not an object")
	}

	changed := make([]string, 0, 4)

	// 1) remove unknown keys
	allowed := make(map[string]struct{}, len(entity.Columns))
	for _, c := range entity.Columns {
		allowed[c] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	// 2) text fields
	for _, k := range []string{entity.ColInvoiceID, entity.ColDateTime, entity.ColReceiver} {
		if v, ok := m[k]; ok {
			if s, ok := scalarString(v); ok {
				m[k] = strings.TrimSpace(s)
			}
		}
	}
	for _, k := range []string{entity.ColProvider, entity.ColRestaurant, entity.ColDeliveryPartner} {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := scalarString(v); ok {
			m[k] = strings.TrimSpace(s)
		}
	}

	// 3) money fields
	for _, k := range entity.NumericColumns {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			continue
		}
		if n, ok := parseMoney(s); ok {
			m[k] = n
			changed = append(changed, k+"(parsed)")
		} else if isNullWord(s) && k != entity.ColTaxes && k != entity.ColTotalAmount {
			m[k] = nil
			changed = append(changed, k+"(null)")
		}
	}

	// 4) list fields
	for _, k := range []string{entity.ColOrderDetails, entity.ColCouponName, entity.ColDiscountAmount} {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if obj, ok := v.(map[string]any); ok {
			v = []any{obj}
			changed = append(changed, k+"(wrapped)")
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for ik, iv := range obj {
				if iv == nil {
					continue
				}
				if k == entity.ColDiscountAmount {
					if s, ok := iv.(string); ok {
						if n, ok := parseMoney(s); ok {
							obj[ik] = n
						}
					}
					continue
				}
				if _, isStr := iv.(string); !isStr {
					if s, ok := scalarString(iv); ok {
						obj[ik] = s
					}
				}
			}
		}
		m[k] = list
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		slices.Sort(changed)
		logger.Warn("llm.extract.sanitize_applied", "changed", changed)
	}
	return out, changed, nil
}

// scalarString renders strings, numbers and booleans as text.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// parseMoney accepts "$45.00", "1,234.50", "Rs. 12", "(4.00)" and similar.
// Anything that is not one amount with an optional currency marker is refused,
// so "2 x 10.00" or "12,50" stay strings and fail schema validation.
func parseMoney(s string) (json.Number, bool) {
	s = strings.TrimSpace(s)
	if isNullWord(s) {
		return "", false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		neg = true
		s = strings.TrimSpace(rest)
	}
	s = reCurrencyPrefix.ReplaceAllString(s, "")
	s = reCurrencySuffix.ReplaceAllString(s, "")
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		neg = true
		s = rest
	}
	if reThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if !reDecimal.MatchString(s) {
		return "", false
	}
	if neg {
		s = "-" + s
	}
	return json.Number(s), true
}

func isNullWord(s string) bool {
	_, ok := nullWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
