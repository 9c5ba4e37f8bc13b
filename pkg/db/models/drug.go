package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Drug is one catalog entry owned by its creator. Stock is the single
// authoritative counter of available units and must never go negative.
type Drug struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DrugType    string          `gorm:"column:drug_type;not null"`
	Name        string          `gorm:"column:name;not null"`
	BatchNo     string          `gorm:"column:batch_no;not null"`
	Description *string         `gorm:"column:description"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	MfgDate     *time.Time      `gorm:"column:mfg_date;type:date"`
	ExpDate     *time.Time      `gorm:"column:exp_date;type:date"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Category    *string         `gorm:"column:category"`
	CreatedBy   uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
