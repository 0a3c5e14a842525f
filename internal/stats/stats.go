package stats

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-reader/internal/entity"
)

// ColumnStats aggregates one numeric column. Aggregates are invalid when Count is 0.
type ColumnStats struct {
	Column string              `json:"column"`
	Count  int                 `json:"count"`
	Sum    decimal.NullDecimal `json:"sum"`
	Mean   decimal.NullDecimal `json:"mean"`
	Mode   decimal.NullDecimal `json:"mode"`
}

const meanPlaces = 6

// Compute returns stats for entity.NumericColumns, in that order.
// Blank and unparseable cells are ignored; a column missing from header reports Count 0.
func Compute(header []string, rows [][]string) []ColumnStats {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	out := make([]ColumnStats, 0, len(entity.NumericColumns))
	for _, col := range entity.NumericColumns {
		cs := ColumnStats{Column: col}
		i, ok := idx[col]
		if !ok {
			out = append(out, cs)
			continue
		}
		var values []decimal.Decimal
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			d, err := decimal.NewFromString(cell)
			if err != nil {
				continue
			}
			values = append(values, d)
		}
		out = append(out, summarize(cs, values))
	}
	return out
}

func summarize(cs ColumnStats, values []decimal.Decimal) ColumnStats {
	cs.Count = len(values)
	if cs.Count == 0 {
		return cs
	}
	sum := decimal.Sum(values[0], values[1:]...)
	cs.Sum = decimal.NewNullDecimal(sum)
	cs.Mean = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(cs.Count))).Round(meanPlaces))
	cs.Mode = decimal.NewNullDecimal(Mode(values))
	return cs
}

// Mode returns the most frequent value; ties go to the smallest value.
// Values equal numerically count together (45 and 45.00).
func Mode(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	best, bestN := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Equal(sorted[i]) {
			j++
		}
		if n := j - i; n > bestN {
			best, bestN = sorted[i], n
		}
		i = j
	}
	return best
}

// Format renders an aggregate for display; invalid values render empty.
func Format(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
