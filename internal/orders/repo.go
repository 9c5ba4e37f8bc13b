package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// Repository exposes the persistence operations the seller workflow needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	ListOrdersForSeller(ctx context.Context, sellerID uuid.UUID, status *enums.OrderItemStatus) ([]models.Order, error)
	LockPendingItems(ctx context.Context, orderID, actorID uuid.UUID) ([]models.OrderItem, error)
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error

	FindDrug(ctx context.Context, id uuid.UUID) (*models.Drug, error)
	DecrementStock(ctx context.Context, drugID uuid.UUID, qty int) (bool, error)
	RestoreStock(ctx context.Context, drugID uuid.UUID, qty int) error
}

type gormRepo struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) WithTx(tx *gorm.DB) Repository {
	return &gormRepo{db: tx}
}

func (r *gormRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepo) FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListOrdersForSeller returns orders that carry at least one item sold by the
// caller, or that name the caller as recipient, newest first with nested items.
func (r *gormRepo) ListOrdersForSeller(ctx context.Context, sellerID uuid.UUID, status *enums.OrderItemStatus) ([]models.Order, error) {
	itemScope := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_id").
		Where("seller_id = ?", sellerID)
	if status != nil {
		itemScope = itemScope.Where("status = ?", *status)
	}

	var orders []models.Order
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			if status != nil {
				db = db.Where("status = ?", *status)
			}
			return db.Order("created_at ASC")
		}).
		Where("id IN (?) OR recipient_id = ?", itemScope, sellerID).
		Order("created_at DESC")
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// LockPendingItems takes row locks on every pending item of the order that the
// caller may act on, in primary-key order as returned by the lock query.
func (r *gormRepo) LockPendingItems(ctx context.Context, orderID, actorID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.order_id = ? AND order_items.status = ?", orderID, enums.OrderItemStatusPending).
		Where("order_items.seller_id = ? OR orders.recipient_id = ?", actorID, actorID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *gormRepo) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepo) FindDrug(ctx context.Context, id uuid.UUID) (*models.Drug, error) {
	var drug models.Drug
	if err := r.db.WithContext(ctx).First(&drug, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &drug, nil
}

// DecrementStock applies a conditional decrement so stock can never go
// negative; the boolean reports whether enough stock was available.
func (r *gormRepo) DecrementStock(ctx context.Context, drugID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE drugs
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, drugID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepo) RestoreStock(ctx context.Context, drugID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE drugs
		SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, drugID).Error
}
