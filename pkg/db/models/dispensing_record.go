package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// DispensingRecord captures the quantity of one drug dispensed on one day
// from one service point. Unique per (drug_id, dispensing_date, category).
type DispensingRecord struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DrugID            uuid.UUID                `gorm:"column:drug_id;type:uuid;not null;uniqueIndex:ux_dispensing_drug_date_category,priority:1"`
	QuantityDispensed int                      `gorm:"column:quantity_dispensed;not null"`
	DispensingDate    time.Time                `gorm:"column:dispensing_date;type:date;not null;uniqueIndex:ux_dispensing_drug_date_category,priority:2"`
	Category          enums.DispensingCategory `gorm:"column:category;type:dispensing_category;not null;uniqueIndex:ux_dispensing_drug_date_category,priority:3"`
	Notes             *string                  `gorm:"column:notes"`
	RecordedBy        uuid.UUID                `gorm:"column:recorded_by;type:uuid;not null"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Drug *Drug `gorm:"foreignKey:DrugID"`
}
