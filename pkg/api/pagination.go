package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest represents pagination request parameters
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// DefaultPageRequest returns a PageRequest with default values
func DefaultPageRequest() PageRequest {
	return PageRequest{
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// PageResponse represents a paginated response
type PageResponse[T any] struct {
	Data       []T  `json:"data"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// TotalPages returns ceil(total/size), never less than 1
func TotalPages(total, size int) int {
	if size < 1 {
		size = DefaultPageSize
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	return pages
}

// ClampPage clamps page into [1, TotalPages(total, size)]
func ClampPage(page, total, size int) int {
	if page < 1 {
		return 1
	}
	if last := TotalPages(total, size); page > last {
		return last
	}
	return page
}

// Paginate slices items to the requested page. The page is clamped, so the
// returned response always describes a page that exists.
func Paginate[T any](items []T, req PageRequest) PageResponse[T] {
	size := req.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	total := len(items)
	page := ClampPage(req.Page, total, size)
	totalPages := TotalPages(total, size)

	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	data := make([]T, end-start)
	copy(data, items[start:end])

	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ParsePagination parses pagination parameters from Gin context
func ParsePagination(c *gin.Context, defaultSize int) PageRequest {
	if defaultSize < 1 {
		defaultSize = DefaultPageSize
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// Page is clamped against the result size later, in Paginate.
	return PageRequest{Page: page, PageSize: pageSize}
}

// FilterRequest represents common filter parameters
type FilterRequest struct {
	Search   string     `json:"search,omitempty"`
	Status   string     `json:"status,omitempty"`
	Category string     `json:"category,omitempty"`
	Alert    string     `json:"alert,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
}

// ParseFilter parses common filter parameters from Gin context. Unparseable
// dates are ignored rather than rejected.
func ParseFilter(c *gin.Context) FilterRequest {
	return FilterRequest{
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Alert:    c.Query("alert"),
		DateFrom: parseDate(c.Query("dateFrom")),
		DateTo:   parseDate(c.Query("dateTo")),
	}
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}
