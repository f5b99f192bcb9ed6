package sheets

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Column indexes within a sheet row, matching the header row order.
const (
	colName   = 2
	colAmount = 3
)

// ListNames returns the distinct transaction names on the sheet, sorted.
func (c *Client) ListNames(ctx context.Context) ([]string, error) {
	rows, err := c.ReadAllRows(ctx)
	if err != nil {
		return nil, err
	}
	return distinctNames(rows), nil
}

// SearchByName returns the data rows whose name matches case-insensitively,
// along with the sum of their Amount column.
func (c *Client) SearchByName(ctx context.Context, name string) ([][]string, decimal.Decimal, error) {
	rows, err := c.ReadAllRows(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	matched, total := searchRows(rows, name)
	return matched, total, nil
}

// distinctNames scans data rows (header skipped) for unique names.
func distinctNames(rows [][]string) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, row := range dataRows(rows) {
		if len(row) <= colName {
			continue
		}
		name := strings.TrimSpace(row[colName])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// searchRows filters data rows by case-insensitive name match and sums their
// amounts. Unparseable amount cells count as zero.
func searchRows(rows [][]string, name string) ([][]string, decimal.Decimal) {
	matched := make([][]string, 0)
	total := decimal.Zero
	for _, row := range dataRows(rows) {
		if len(row) <= colName {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(row[colName]), strings.TrimSpace(name)) {
			continue
		}
		matched = append(matched, row)
		if len(row) > colAmount {
			if amt, err := decimal.NewFromString(strings.TrimSpace(row[colAmount])); err == nil {
				total = total.Add(amt)
			}
		}
	}
	return matched, total
}

// dataRows strips the header row if present.
func dataRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
