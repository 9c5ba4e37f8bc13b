package drugs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/csvx"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

// RowError reports a single skipped CSV row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a CSV import run.
type ImportResult struct {
	Imported int        `json:"imported"`
	Total    int        `json:"total"`
	Errors   []RowError `json:"errors"`
}

var exportHeader = []string{
	"Name", "Drug_Type", "Batch_No", "Description", "Stock",
	"Mfg_Date", "Exp_Date", "Price", "Category",
}

// ImportCSV upserts catalog rows keyed by (name, batch_no, owner). A row that
// matches an existing entry adds its stock and refreshes the other fields; a
// bad row is recorded and skipped without aborting the rest of the file.
func (s *service) ImportCSV(ctx context.Context, ownerID uuid.UUID, r io.Reader) (*ImportResult, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv file is empty or unreadable")
	}
	header := csvx.ParseHeader(headerRow)
	if _, ok := header.Lookup("name", "drug_name"); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv is missing a name column")
	}

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

			if ierr := s.importRow(ctx, repo, ownerID, header, row); ierr != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: ierr.Error()})
				continue
			}
			result.Imported++
		}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import drug csv")
	}
	return result, nil
}

func (s *service) importRow(ctx context.Context, repo Repository, ownerID uuid.UUID, header csvx.Header, row []string) error {
	name := header.Field(row, "name", "drug_name")
	if name == "" {
		return fmt.Errorf("name is required")
	}
	batchNo := header.Field(row, "batch_no", "batch", "batch_number")
	if batchNo == "" {
		return fmt.Errorf("batch_no is required")
	}
	drugType := header.Field(row, "drug_type", "type")
	if drugType == "" {
		return fmt.Errorf("drug_type is required")
	}

	stockRaw := header.Field(row, "stock", "quantity", "qty")
	stock, err := strconv.Atoi(stockRaw)
	if err != nil || stock < 0 {
		return fmt.Errorf("invalid stock %q", stockRaw)
	}

	price := decimal.Zero
	if priceRaw := header.Field(row, "price", "unit_price"); priceRaw != "" {
		price, err = decimal.NewFromString(priceRaw)
		if err != nil || price.IsNegative() {
			return fmt.Errorf("invalid price %q", priceRaw)
		}
	}

	mfgDate, err := csvx.ParseOptionalDate(header.Field(row, "mfg_date", "manufacture_date", "manufacturing_date"))
	if err != nil {
		return fmt.Errorf("invalid mfg_date: %v", err)
	}
	expDate, err := csvx.ParseOptionalDate(header.Field(row, "exp_date", "expiry_date", "expiration_date"))
	if err != nil {
		return fmt.Errorf("invalid exp_date: %v", err)
	}

	var description, category *string
	if v := header.Field(row, "description"); v != "" {
		description = &v
	}
	if v := header.Field(row, "category"); v != "" {
		category = &v
	}

	existing, err := repo.FindByNaturalKey(ctx, name, batchNo, ownerID)
	switch {
	case err == nil:
		updates := map[string]any{
			"drug_type": drugType,
			"stock":     existing.Stock + stock,
			"price":     price,
		}
		if description != nil {
			updates["description"] = *description
		}
		if category != nil {
			updates["category"] = *category
		}
		if mfgDate != nil {
			updates["mfg_date"] = *mfgDate
		}
		if expDate != nil {
			updates["exp_date"] = *expDate
		}
		if _, uerr := repo.Update(ctx, existing.ID, ownerID, updates); uerr != nil {
			return fmt.Errorf("update existing drug: %v", uerr)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		_, cerr := repo.Create(ctx, &models.Drug{
			DrugType:    drugType,
			Name:        name,
			BatchNo:     batchNo,
			Description: description,
			Stock:       stock,
			MfgDate:     mfgDate,
			ExpDate:     expDate,
			Price:       price,
			Category:    category,
			CreatedBy:   ownerID,
		})
		if cerr != nil {
			return fmt.Errorf("insert drug: %v", cerr)
		}
		return nil
	default:
		return fmt.Errorf("lookup drug: %v", err)
	}
}

// ExportCSV streams the owner's whole catalog in the import-compatible layout.
func (s *service) ExportCSV(ctx context.Context, ownerID uuid.UUID, w io.Writer) error {
	rows, err := s.repo.ListAll(ctx, ownerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "export drugs")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, drug := range rows {
		record := []string{
			drug.Name,
			drug.DrugType,
			drug.BatchNo,
			deref(drug.Description),
			strconv.Itoa(drug.Stock),
			formatDate(drug.MfgDate),
			formatDate(drug.ExpDate),
			drug.Price.StringFixed(2),
			deref(drug.Category),
		}
		if err := writer.Write(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
