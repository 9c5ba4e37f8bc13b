package drugs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the drug catalog for its owner.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Drug, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Drug, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Update(ctx context.Context, input UpdateInput) (*models.Drug, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	ImportCSV(ctx context.Context, ownerID uuid.UUID, r io.Reader) (*ImportResult, error)
	ExportCSV(ctx context.Context, ownerID uuid.UUID, w io.Writer) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// CreateInput carries the fields for a new catalog entry.
type CreateInput struct {
	OwnerID     uuid.UUID
	DrugType    string
	Name        string
	BatchNo     string
	Description *string
	Stock       int
	MfgDate     *time.Time
	ExpDate     *time.Time
	Price       decimal.Decimal
	Category    *string
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	DrugType    *string
	Name        *string
	BatchNo     *string
	Description *string
	Stock       *int
	MfgDate     *time.Time
	ExpDate     *time.Time
	Price       *decimal.Decimal
	Category    *string
}

// ListInput filters and paginates the catalog listing.
type ListInput struct {
	OwnerID uuid.UUID
	Filter  ListFilter
	Limit   int
	Cursor  string
}

// ListResult is one page of drugs plus the cursor for the next page.
type ListResult struct {
	Drugs      []models.Drug `json:"drugs"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// NewService builds the catalog service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("drugs repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Drug, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if err := validateCatalogFields(input.Name, input.BatchNo, input.DrugType, input.Stock, input.Price); err != nil {
		return nil, err
	}

	drug := &models.Drug{
		DrugType:    strings.TrimSpace(input.DrugType),
		Name:        strings.TrimSpace(input.Name),
		BatchNo:     strings.TrimSpace(input.BatchNo),
		Description: input.Description,
		Stock:       input.Stock,
		MfgDate:     input.MfgDate,
		ExpDate:     input.ExpDate,
		Price:       input.Price,
		Category:    input.Category,
		CreatedBy:   input.OwnerID,
	}
	created, err := s.repo.Create(ctx, drug)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicate, "a drug with this name and batch already exists").
				WithDetails(map[string]any{"name": drug.Name, "batch_no": drug.BatchNo})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create drug")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Drug, error) {
	drug, err := s.repo.FindByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drug not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load drug")
	}
	return drug, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.Parse(input.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Limit)

	rows, err := s.repo.List(ctx, input.OwnerID, input.Filter, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list drugs")
	}

	result := &ListResult{Drugs: rows}
	if len(rows) > limit {
		result.Drugs = rows[:limit]
		last := result.Drugs[limit-1]
		result.NextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Drug, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}

	updates := map[string]any{}
	if input.DrugType != nil {
		if strings.TrimSpace(*input.DrugType) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "drug_type cannot be empty")
		}
		updates["drug_type"] = strings.TrimSpace(*input.DrugType)
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.BatchNo != nil {
		if strings.TrimSpace(*input.BatchNo) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch_no cannot be empty")
		}
		updates["batch_no"] = strings.TrimSpace(*input.BatchNo)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.MfgDate != nil {
		updates["mfg_date"] = *input.MfgDate
	}
	if input.ExpDate != nil {
		updates["exp_date"] = *input.ExpDate
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}

	var updated *models.Drug
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.Update(ctx, input.ID, input.OwnerID, updates)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeDuplicate, "a drug with this name and batch already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update drug")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "drug not found")
		}

		updated, err = repo.FindByID(ctx, input.ID, input.OwnerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload drug")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	affected, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete drug")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drug not found")
	}
	return nil
}

func validateCatalogFields(name, batchNo, drugType string, stock int, price decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(batchNo) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch_no is required")
	}
	if strings.TrimSpace(drugType) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "drug_type is required")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}
