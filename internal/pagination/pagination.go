// Package pagination parses the list query parameters shared by every list
// endpoint (limit, page, all, sort_by, sort_dir) and builds the meta block.
package pagination

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside 32 bits for every allowed limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

type Params struct {
	Limit   int
	Page    int
	All     bool
	SortBy  string // column name, already checked against the allow-list
	SortDir string // ASC or DESC
}

// Offset is the number of rows to skip for the current page.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	page, limit := p.Page, p.Limit
	if page > MaxPage {
		page = MaxPage
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return (page - 1) * limit
}

// Order renders "column DIR" for SQL ORDER BY.
func (p Params) Order() string {
	return p.SortBy + " " + p.SortDir
}

// Descending reports whether rows are sorted from high to low.
func (p Params) Descending() bool {
	return p.SortDir == "DESC"
}

// FromQuery reads the paging parameters from c. sortBy maps public sort keys
// to column names; unknown keys fall back to defaultSort.
func FromQuery(c *gin.Context, allowedSorts map[string]string, defaultSort string) Params {
	p := Params{
		Limit:   DefaultLimit,
		Page:    1,
		All:     strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1",
		SortDir: strings.ToUpper(c.DefaultQuery("sort_dir", "DESC")),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = min(n, MaxPage)
		}
	}
	if p.SortDir != "ASC" && p.SortDir != "DESC" {
		p.SortDir = "DESC"
	}
	sortCol, ok := allowedSorts[strings.ToLower(c.DefaultQuery("sort_by", defaultSort))]
	if !ok {
		sortCol = allowedSorts[defaultSort]
	}
	p.SortBy = sortCol
	return p
}

// Meta builds the "meta" object returned next to "data".
func Meta(p Params, total int64) gin.H {
	meta := gin.H{"total": total, "all": p.All}
	if !p.All {
		meta["limit"] = p.Limit
		meta["page"] = p.Page
		meta["sort_by"] = p.SortBy
		meta["sort_dir"] = p.SortDir
		pages := int64(0)
		if p.Limit > 0 {
			pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
		}
		meta["pages"] = pages
	}
	return meta
}
