package taxonomy

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/csvx"
	"github.com/tsheringp/pharmstock-backend/pkg/db"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains the drug type and name reference catalog used for
// autocompleting catalog entry.
type Service interface {
	CreateType(ctx context.Context, name string) (*models.DrugType, error)
	ListTypes(ctx context.Context) ([]models.DrugType, error)
	DeleteType(ctx context.Context, id uuid.UUID) error

	AddName(ctx context.Context, typeName, drugName string) (*models.DrugName, error)
	ListNames(ctx context.Context, typeID uuid.UUID) ([]models.DrugName, error)
	DeleteName(ctx context.Context, id uuid.UUID) error

	ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error)
}

// RowError reports a single skipped CSV row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a taxonomy CSV import run.
type ImportResult struct {
	Imported int        `json:"imported"`
	Total    int        `json:"total"`
	Errors   []RowError `json:"errors"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the taxonomy service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("taxonomy repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateType(ctx context.Context, name string) (*models.DrugType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type name is required")
	}
	created, err := s.repo.CreateType(ctx, &models.DrugType{Name: name})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicate, "drug type already exists").
				WithDetails(map[string]any{"name": name})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create drug type")
	}
	return created, nil
}

func (s *service) ListTypes(ctx context.Context) ([]models.DrugType, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list drug types")
	}
	return types, nil
}

func (s *service) DeleteType(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteType(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete drug type")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drug type not found")
	}
	return nil
}

// AddName attaches a drug name to a type, creating the type on first use.
func (s *service) AddName(ctx context.Context, typeName, drugName string) (*models.DrugName, error) {
	typeName = strings.TrimSpace(typeName)
	drugName = strings.TrimSpace(drugName)
	if typeName == "" || drugName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type and name are required")
	}

	var created *models.DrugName
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		drugType, err := repo.FindTypeByName(ctx, typeName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			drugType, err = repo.CreateType(ctx, &models.DrugType{Name: typeName})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve drug type")
		}

		created, err = repo.CreateName(ctx, &models.DrugName{TypeID: drugType.ID, Name: drugName})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeDuplicate, "drug name already exists for this type").
					WithDetails(map[string]any{"type": typeName, "name": drugName})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create drug name")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ListNames(ctx context.Context, typeID uuid.UUID) ([]models.DrugName, error) {
	names, err := s.repo.ListNamesByType(ctx, typeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list drug names")
	}
	return names, nil
}

func (s *service) DeleteName(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteName(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete drug name")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drug name not found")
	}
	return nil
}

// ImportCSV loads (type, name) pairs. Existing pairs are skipped silently;
// bad rows are recorded and skipped without aborting the rest of the file.
func (s *service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is empty or unreadable")
	}
	header := csvx.ParseHeader(headerRow)

	result := &ImportResult{Errors: []RowError{}}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		for line := 2; ; line++ {
			row, rerr := reader.Read()
			if rerr == io.EOF {
				return nil
			}
			if rerr != nil {
				result.Total++
				result.Errors = append(result.Errors, RowError{Row: line, Message: "malformed csv row"})
				continue
			}
			result.Total++

			typeName := header.Field(row, "drug_type", "type")
			drugName := header.Field(row, "name", "drug_name")
			if typeName == "" || drugName == "" {
				result.Errors = append(result.Errors, RowError{Row: line, Message: "type and name are required"})
				continue
			}

			drugType, terr := repo.FindTypeByName(ctx, typeName)
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				drugType, terr = repo.CreateType(ctx, &models.DrugType{Name: typeName})
			}
			if terr != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: "resolve drug type failed"})
				continue
			}

			if _, nerr := repo.FindName(ctx, drugType.ID, drugName); nerr == nil {
				// Already present, count the row as imported.
				result.Imported++
				continue
			}
			if _, cerr := repo.CreateName(ctx, &models.DrugName{TypeID: drugType.ID, Name: drugName}); cerr != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: "insert drug name failed"})
				continue
			}
			result.Imported++
		}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import taxonomy csv")
	}
	return result, nil
}
