package drugs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/pagination"
)

// Repository persists the drug catalog. Every read is scoped to the owning
// user so one institute never sees another's shelf.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, drug *models.Drug) (*models.Drug, error)
	FindByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Drug, error)
	FindByNaturalKey(ctx context.Context, name, batchNo string, ownerID uuid.UUID) (*models.Drug, error)
	FindByNameInsensitive(ctx context.Context, name string, ownerID uuid.UUID) (*models.Drug, error)
	List(ctx context.Context, ownerID uuid.UUID, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Drug, error)
	ListAll(ctx context.Context, ownerID uuid.UUID) ([]models.Drug, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (int64, error)
}

// ListFilter narrows the catalog listing.
type ListFilter struct {
	Search   string
	DrugType string
	Category string
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

func (r *gormRepo) Create(ctx context.Context, drug *models.Drug) (*models.Drug, error) {
	if err := r.db.WithContext(ctx).Create(drug).Error; err != nil {
		return nil, err
	}
	return drug, nil
}

func (r *gormRepo) FindByID(ctx context.Context, id, ownerID uuid.UUID) (*models.Drug, error) {
	var drug models.Drug
	err := r.db.WithContext(ctx).
		First(&drug, "id = ? AND created_by = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

func (r *gormRepo) FindByNaturalKey(ctx context.Context, name, batchNo string, ownerID uuid.UUID) (*models.Drug, error) {
	var drug models.Drug
	err := r.db.WithContext(ctx).
		First(&drug, "name = ? AND batch_no = ? AND created_by = ?", name, batchNo, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

func (r *gormRepo) FindByNameInsensitive(ctx context.Context, name string, ownerID uuid.UUID) (*models.Drug, error) {
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

func (r *gormRepo) List(ctx context.Context, ownerID uuid.UUID, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Drug, error) {
	query := r.db.WithContext(ctx).
		Where("created_by = ?", ownerID)
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.DrugType != "" {
		query = query.Where("drug_type = ?", filter.DrugType)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var out []models.Drug
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) ListAll(ctx context.Context, ownerID uuid.UUID) ([]models.Drug, error) {
	var out []models.Drug
	err := r.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("name ASC, batch_no ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) Update(ctx context.Context, id, ownerID uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Drug{}).
		Where("id = ? AND created_by = ?", id, ownerID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *gormRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, ownerID).
		Delete(&models.Drug{})
	return res.RowsAffected, res.Error
}
