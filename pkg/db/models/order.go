package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// Order groups the line items of one purchase or transfer.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNo         string                `gorm:"column:order_no;not null;uniqueIndex"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	RecipientID     *uuid.UUID            `gorm:"column:recipient_id;type:uuid"`
	TransactionType enums.TransactionType `gorm:"column:transaction_type;type:transaction_type;not null"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}
