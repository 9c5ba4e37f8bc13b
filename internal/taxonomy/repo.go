package taxonomy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
)

// Repository persists the drug type/name reference catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateType(ctx context.Context, t *models.DrugType) (*models.DrugType, error)
	FindTypeByName(ctx context.Context, name string) (*models.DrugType, error)
	ListTypes(ctx context.Context) ([]models.DrugType, error)
	DeleteType(ctx context.Context, id uuid.UUID) (int64, error)

	CreateName(ctx context.Context, n *models.DrugName) (*models.DrugName, error)
	FindName(ctx context.Context, typeID uuid.UUID, name string) (*models.DrugName, error)
	ListNamesByType(ctx context.Context, typeID uuid.UUID) ([]models.DrugName, error)
	DeleteName(ctx context.Context, id uuid.UUID) (int64, error)
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

func (r *gormRepo) CreateType(ctx context.Context, t *models.DrugType) (*models.DrugType, error) {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (r *gormRepo) FindTypeByName(ctx context.Context, name string) (*models.DrugType, error) {
	var t models.DrugType
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepo) ListTypes(ctx context.Context) ([]models.DrugType, error) {
	var out []models.DrugType
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) DeleteType(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DrugType{})
	return res.RowsAffected, res.Error
}

func (r *gormRepo) CreateName(ctx context.Context, n *models.DrugName) (*models.DrugName, error) {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (r *gormRepo) FindName(ctx context.Context, typeID uuid.UUID, name string) (*models.DrugName, error) {
	var n models.DrugName
	err := r.db.WithContext(ctx).
		Where("type_id = ? AND LOWER(name) = LOWER(?)", typeID, name).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormRepo) ListNamesByType(ctx context.Context, typeID uuid.UUID) ([]models.DrugName, error) {
	var out []models.DrugName
	err := r.db.WithContext(ctx).
		Where("type_id = ?", typeID).
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepo) DeleteName(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DrugName{})
	return res.RowsAffected, res.Error
}
