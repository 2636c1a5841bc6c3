package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// ProductService serves the pharmacy inventory view
type ProductService struct {
	products *Controller[domain.Product]
	rules    AlertRules
	logger   *logging.Logger
	clock    func() time.Time
}

// NewProductService creates a new ProductService
func NewProductService(products *Controller[domain.Product], rules AlertRules, logger *logging.Logger) *ProductService {
	return &ProductService{
		products: products,
		rules:    rules,
		logger:   logger.WithComponent("product-service"),
		clock:    time.Now,
	}
}

// ListProducts filters the cached products by search term, category and
// alert class, then paginates them.
func (s *ProductService) ListProducts(ctx context.Context, query ListProductsQuery) (*ProductListResult, error) {
	var alertKey domain.AlertKey
	if query.Alert != "" {
		key, err := domain.ParseAlertKey(query.Alert)
		if err != nil {
			return nil, err
		}
		alertKey = key
	}

	thresholds := s.rules.For(query.Screen)
	today := s.clock()
	snapshot := s.products.Snapshot()

	rows := make([]ProductDTO, 0, len(snapshot.Records))
	for _, p := range snapshot.Records {
		if !MatchesSearch(query.Search, p.Name, p.Category, p.Location, p.ID) {
			continue
		}
		if query.Category != "" && !strings.EqualFold(p.Category, query.Category) {
			continue
		}
		dto := ToProductDTO(p, thresholds, today)
		if alertKey != "" && !dto.Alerts.Has(alertKey) {
			continue
		}
		rows = append(rows, dto)
	}

	return &ProductListResult{
		Page:        api.Paginate(rows, query.Page),
		Thresholds:  thresholds,
		RefreshedAt: snapshot.RefreshedAt,
		LastError:   snapshot.LastError,
	}, nil
}

// Categories returns the distinct product categories, sorted
func (s *ProductService) Categories(ctx context.Context) []string {
	seen := make(map[string]struct{})
	for _, p := range s.products.Records() {
		if p.Category != "" {
			seen[p.Category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
