package pagination

import (
	"context"
	"fmt"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/planner"
)

// Links is the JSON:API top-level `links` object this package contributes
// (self/first/prev/next/last, whichever apply to the page's mode).
type Links map[string]string

// ResolveOffset runs the optional COUNT(*) query for offset pagination
// (gated behind EnablePaginationCounts, §6) and fills in the Result's Total
// and page Links. countQuery must already carry the plan's WHERE/JOINs but
// not its LIMIT/OFFSET/ORDER.
func ResolveOffset(ctx context.Context, countQuery common.SelectQuery, p *planner.Plan, cfg planner.Config) (Result, error) {
	res := Result{
		Mode:   ModeOffset,
		Number: p.Pagination.Number,
		Size:   p.Pagination.Size,
		Total:  -1,
	}
	if !cfg.EnablePaginationCounts {
		return res, nil
	}
	total, err := countQuery.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("pagination count: %w", err)
	}
	res.Total = int64(total)
	return res, nil
}

// BuildOffsetLinks synthesizes first/prev/next/last links for offset mode.
// selfURL must already contain every query parameter except `page[number]`.
func BuildOffsetLinks(selfURL string, res Result) Links {
	links := Links{
		"self":  withPageNumber(selfURL, res.Number),
		"first": withPageNumber(selfURL, 1),
	}
	if res.Number > 1 {
		links["prev"] = withPageNumber(selfURL, res.Number-1)
	}
	if res.Total >= 0 {
		lastPage := int((res.Total + int64(res.Size) - 1) / int64(res.Size))
		if lastPage < 1 {
			lastPage = 1
		}
		links["last"] = withPageNumber(selfURL, lastPage)
		if res.Number < lastPage {
			links["next"] = withPageNumber(selfURL, res.Number+1)
		}
	}
	return links
}

func withPageNumber(base string, n int) string {
	sep := "?"
	if containsRune(base, '?') {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage[number]=%d", base, sep, n)
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

// SplitCursorPage trims a fetched row slice back down to the requested page
// size and reports whether more rows exist, implementing the size+1
// hasMore detection of §4.3/§9. rows must have been fetched with
// Plan.Pagination.FetchSize as the LIMIT.
func SplitCursorPage(rows []map[string]interface{}, size int, backward bool) (page []map[string]interface{}, hasMore bool) {
	if len(rows) > size {
		hasMore = true
		rows = rows[:size]
	}
	if backward {
		reversed := make([]map[string]interface{}, len(rows))
		for i, r := range rows {
			reversed[len(rows)-1-i] = r
		}
		rows = reversed
	}
	return rows, hasMore
}
