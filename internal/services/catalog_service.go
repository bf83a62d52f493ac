package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

const (
	minSearchQueryLen  = 2
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	productViewSource  = "direct"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogService чтение товаров и фоновая запись телеметрии просмотров и поиска
type CatalogService struct {
	db        *gorm.DB
	anonymous *AnonymousService
	tasks     TaskSubmitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewCatalogService(db *gorm.DB, anonymous *AnonymousService, tasks TaskSubmitter, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:        db,
		anonymous: anonymous,
		tasks:     tasks,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetProduct ищет товар по id или slug
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string) (*models.Product, error) {
	q := s.db.WithContext(ctx)
	if id, err := uuid.Parse(idOrSlug); err == nil {
		q = q.Where("id = ? OR slug = ?", id, idOrSlug)
	} else {
		q = q.Where("slug = ?", idOrSlug)
	}

	var product models.Product
	if err := q.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &product, nil
}

// Search ищет активные товары по названию и артикулу.
// Запрос короче двух символов дает пустой результат.
func (s *CatalogService) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchQueryLen {
		return &SearchResult{Products: []models.Product{}}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	like := "%" + strings.ToLower(query) + "%"
	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like).
		Order("name").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	s.RecordSearchQuery(query)

	return &SearchResult{Products: products}, nil
}

// RecordProductView ставит запись просмотра в очередь, ответ клиенту ее не ждет
func (s *CatalogService) RecordProductView(event ProductViewEvent) {
	now := s.now()
	s.tasks.Submit("product_view", func(ctx context.Context) error {
		view := &models.ProductView{
			BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
			ProductID: event.ProductID,
			UserID:    event.UserID,
			Source:    productViewSource,
		}
		if event.Referrer != "" {
			referrer := event.Referrer
			view.Referrer = &referrer
		}
		if event.AnonymousToken != "" {
			anon, err := s.anonymous.FindByToken(ctx, event.AnonymousToken)
			if err != nil {
				return err
			}
			if anon != nil {
				view.SessionID = &anon.SessionID
			}
		}

		if err := s.db.WithContext(ctx).Create(view).Error; err != nil {
			return fmt.Errorf("failed to save product view: %w", err)
		}
		return nil
	})
}

// RecordSearchQuery увеличивает счетчик запроса (в нижнем регистре)
func (s *CatalogService) RecordSearchQuery(query string) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return
	}

	now := s.now()
	s.tasks.Submit("search_query", func(ctx context.Context) error {
		row := &models.SearchQuery{
			BaseModel:  models.BaseModel{CreatedAt: now, UpdatedAt: now},
			Query:      normalized,
			Count:      1,
			LastUsedAt: now,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "query"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":        gorm.Expr("search_queries.count + ?", 1),
				"last_used_at": now,
				"updated_at":   now,
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to record search query: %w", err)
		}
		return nil
	})
}
