package dispensing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// Repository persists daily dispensing records and the stock moves that
// accompany them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindDrugForOwner(ctx context.Context, drugID, ownerID uuid.UUID) (*models.Drug, error)
	FindDrugByName(ctx context.Context, name string, ownerID uuid.UUID) (*models.Drug, error)

	FindRecord(ctx context.Context, drugID uuid.UUID, date time.Time, category enums.DispensingCategory) (*models.DispensingRecord, error)
	FindRecordForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.DispensingRecord, error)
	CreateRecord(ctx context.Context, record *models.DispensingRecord) (*models.DispensingRecord, error)
	UpdateRecord(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
	ListRecords(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.DispensingRecord, error)
	Summarize(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]SummaryRow, error)

	// AdjustStock subtracts delta from the drug's stock. A negative delta adds
	// stock back. The boolean reports whether enough stock covered the delta.
	AdjustStock(ctx context.Context, drugID uuid.UUID, delta int) (bool, error)
	RestoreStock(ctx context.Context, drugID uuid.UUID, qty int) error
}

// ListFilter narrows the dispensing listing.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Category *enums.DispensingCategory
}

// SummaryRow aggregates dispensed quantities per drug and category.
type SummaryRow struct {
	DrugID        uuid.UUID                `json:"drug_id"`
	DrugName      string                   `json:"drug_name"`
	Category      enums.DispensingCategory `json:"category"`
	TotalQuantity int                      `json:"total_quantity"`
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

func (r *gormRepo) FindDrugForOwner(ctx context.Context, drugID, ownerID uuid.UUID) (*models.Drug, error) {
	var drug models.Drug
	err := r.db.WithContext(ctx).
		First(&drug, "id = ? AND created_by = ?", drugID, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

func (r *gormRepo) FindDrugByName(ctx context.Context, name string, ownerID uuid.UUID) (*models.Drug, error) {
	var drug models.Drug
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ? AND created_by = ?", strings.ToLower(strings.TrimSpace(name)), ownerID).
		Order("created_at ASC").
		First(&drug).Error
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

func (r *gormRepo) FindRecord(ctx context.Context, drugID uuid.UUID, date time.Time, category enums.DispensingCategory) (*models.DispensingRecord, error) {
	var record models.DispensingRecord
	err := r.db.WithContext(ctx).
		Where("drug_id = ? AND dispensing_date = ? AND category = ?", drugID, date.Format("2006-01-02"), category).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRecordForOwner loads a record only when its drug belongs to the caller,
// so foreign records look like they do not exist.
func (r *gormRepo) FindRecordForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.DispensingRecord, error) {
	var record models.DispensingRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN drugs ON drugs.id = dispensing_records.drug_id").
		Where("dispensing_records.id = ? AND drugs.created_by = ?", id, ownerID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormRepo) CreateRecord(ctx context.Context, record *models.DispensingRecord) (*models.DispensingRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *gormRepo) UpdateRecord(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DispensingRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepo) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.DispensingRecord{}).Error
}

func (r *gormRepo) ListRecords(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.DispensingRecord, error) {
	query := r.db.WithContext(ctx).
		Preload("Drug").
		Joins("JOIN drugs ON drugs.id = dispensing_records.drug_id").
		Where("drugs.created_by = ?", ownerID)
	if filter.From != nil {
		query = query.Where("dispensing_records.dispensing_date >= ?", filter.From.Format("2006-01-02"))
	}
	if filter.To != nil {
		query = query.Where("dispensing_records.dispensing_date <= ?", filter.To.Format("2006-01-02"))
	}
	if filter.Category != nil {
		query = query.Where("dispensing_records.category = ?", *filter.Category)
	}

	var out []models.DispensingRecord
	err := query.
		Order("dispensing_records.dispensing_date DESC, dispensing_records.created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) Summarize(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]SummaryRow, error) {
	var out []SummaryRow
	err := r.db.WithContext(ctx).
		Model(&models.DispensingRecord{}).
		Select("dispensing_records.drug_id AS drug_id, drugs.name AS drug_name, dispensing_records.category AS category, SUM(dispensing_records.quantity_dispensed) AS total_quantity").
		Joins("JOIN drugs ON drugs.id = dispensing_records.drug_id").
		Where("drugs.created_by = ?", ownerID).
		Where("dispensing_records.dispensing_date BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Group("dispensing_records.drug_id, drugs.name, dispensing_records.category").
		Order("drugs.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) AdjustStock(ctx context.Context, drugID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE drugs
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, delta, drugID, delta)
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
