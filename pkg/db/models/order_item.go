package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// OrderItem is one line of an order. DrugID is null for custom or
// manufacturer-named entries that have no catalog row.
type OrderItem struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	DrugID    *uuid.UUID            `gorm:"column:drug_id;type:uuid"`
	Name      string                `gorm:"column:name;not null"`
	Quantity  int                   `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status    enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	SellerID  uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	Category  *string               `gorm:"column:category"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
