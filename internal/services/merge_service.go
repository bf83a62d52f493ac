package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AndrewYakovlev/aso-store/internal/models"
)

// MergeService переносит данные анонимной личности в аккаунт пользователя
type MergeService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewMergeService(db *gorm.DB, logger *zap.Logger) *MergeService {
	return &MergeService{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Merge выполняет слияние в одной транзакции: привязка, корзина, избранное,
// история и чаты. При ошибке ничего не меняется и личность остается непривязанной.
func (s *MergeService) Merge(ctx context.Context, anonymousID, userID uuid.UUID) (*MergeResult, error) {
	result := &MergeResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anon, err := s.lockAnonymous(tx, anonymousID)
		if err != nil {
			return err
		}
		if anon.IsLinked() {
			return ErrAnonymousAlreadyLinked
		}

		var users int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if users == 0 {
			return ErrUserNotFound
		}

		if err := tx.Model(anon).Update("linked_user_id", userID).Error; err != nil {
			return fmt.Errorf("failed to link anonymous user: %w", err)
		}

		if err := s.mergeCarts(tx, anonymousID, userID, result); err != nil {
			return err
		}
		if err := s.mergeFavorites(tx, anonymousID, userID, result); err != nil {
			return err
		}
		return s.moveHistory(tx, anonymousID, userID, result)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Anonymous user merged",
		zap.String("anonymous_id", anonymousID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("cart_items_merged", result.CartItemsMerged),
		zap.Int("cart_items_copied", result.CartItemsCopied),
		zap.Int64("favorites_added", result.FavoritesAdded),
	)

	return result, nil
}

// lockAnonymous читает анонимную личность с блокировкой строки (на postgres)
func (s *MergeService) lockAnonymous(tx *gorm.DB, anonymousID uuid.UUID) (*models.AnonymousUser, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var anon models.AnonymousUser
	if err := q.First(&anon, "id = ?", anonymousID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnonymousNotFound
		}
		return nil, fmt.Errorf("failed to load anonymous user: %w", err)
	}
	return &anon, nil
}

func (s *MergeService) mergeCarts(tx *gorm.DB, anonymousID, userID uuid.UUID, result *MergeResult) error {
	var carts []models.Cart
	if err := tx.Preload("Items").Where("anonymous_id = ?", anonymousID).Find(&carts).Error; err != nil {
		return fmt.Errorf("failed to load anonymous carts: %w", err)
	}
	if len(carts) == 0 {
		return nil
	}

	userCart, err := s.userCart(tx, userID)
	if err != nil {
		return err
	}

	for _, cart := range carts {
		for _, item := range cart.Items {
			existing, err := findCartItem(tx, userCart.ID, item.ProductID, item.ChatProductID)
			if err != nil {
				return err
			}

			if existing != nil {
				// цена существующей позиции сохраняется
				if err := tx.Model(existing).
					UpdateColumn("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error; err != nil {
					return fmt.Errorf("failed to merge cart item: %w", err)
				}
				result.CartItemsMerged++
				continue
			}

			copied := &models.CartItem{
				CartID:        userCart.ID,
				ProductID:     item.ProductID,
				ChatProductID: item.ChatProductID,
				Quantity:      item.Quantity,
				Price:         item.Price,
			}
			if err := tx.Create(copied).Error; err != nil {
				return fmt.Errorf("failed to copy cart item: %w", err)
			}
			result.CartItemsCopied++
		}
	}

	return nil
}

// userCart находит корзину пользователя или создает ее
func (s *MergeService) userCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Where("user_id = ?", userID).Order("created_at").First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load user cart: %w", err)
	}

	now := s.now()
	cart = models.Cart{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		UserID:    &userID,
	}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create user cart: %w", err)
	}
	return &cart, nil
}

// findCartItem ищет позицию по паре (product_id, chat_product_id) с учетом NULL
func findCartItem(tx *gorm.DB, cartID uuid.UUID, productID, chatProductID *uuid.UUID) (*models.CartItem, error) {
	q := tx.Where("cart_id = ?", cartID)
	if productID != nil {
		q = q.Where("product_id = ?", *productID)
	} else {
		q = q.Where("product_id IS NULL")
	}
	if chatProductID != nil {
		q = q.Where("chat_product_id = ?", *chatProductID)
	} else {
		q = q.Where("chat_product_id IS NULL")
	}

	var item models.CartItem
	err := q.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	return &item, nil
}

func (s *MergeService) mergeFavorites(tx *gorm.DB, anonymousID, userID uuid.UUID, result *MergeResult) error {
	var favorites []models.Favorite
	if err := tx.Where("anonymous_id = ?", anonymousID).Find(&favorites).Error; err != nil {
		return fmt.Errorf("failed to load anonymous favorites: %w", err)
	}

	for _, fav := range favorites {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Favorite{
			UserID:    &userID,
			ProductID: fav.ProductID,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to copy favorite: %w", res.Error)
		}
		result.FavoritesAdded += res.RowsAffected
	}

	return nil
}

func (s *MergeService) moveHistory(tx *gorm.DB, anonymousID, userID uuid.UUID, result *MergeResult) error {
	reassign := map[string]interface{}{"user_id": userID, "anonymous_id": nil}

	res := tx.Model(&models.ViewHistory{}).Where("anonymous_id = ?", anonymousID).Updates(reassign)
	if res.Error != nil {
		return fmt.Errorf("failed to move view history: %w", res.Error)
	}
	result.ViewsMoved = res.RowsAffected

	res = tx.Model(&models.SearchHistory{}).Where("anonymous_id = ?", anonymousID).Updates(reassign)
	if res.Error != nil {
		return fmt.Errorf("failed to move search history: %w", res.Error)
	}
	result.SearchesMoved = res.RowsAffected

	res = tx.Model(&models.Chat{}).Where("anonymous_id = ?", anonymousID).Updates(reassign)
	if res.Error != nil {
		return fmt.Errorf("failed to move chats: %w", res.Error)
	}
	result.ChatsMoved = res.RowsAffected

	return nil
}
