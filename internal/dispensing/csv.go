package dispensing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/csvx"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

// RowError reports a single skipped CSV row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a dispensing CSV import run.
type ImportResult struct {
	Imported int        `json:"imported"`
	Total    int        `json:"total"`
	Errors   []RowError `json:"errors"`
}

// ImportCSV records one dispensing entry per row, resolving drugs by
// case-insensitive name within the caller's catalog. Bad rows are recorded
// and skipped; the import commits whatever succeeded.
func (s *service) ImportCSV(ctx context.Context, actorID uuid.UUID, r io.Reader) (*ImportResult, error) {
	if actorID == uuid.Nil {
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

	recordDate := today(s.now)
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

			if ierr := s.importRow(ctx, repo, actorID, header, row, recordDate); ierr != nil {
				result.Errors = append(result.Errors, RowError{Row: line, Message: ierr.Error()})
				continue
			}
			result.Imported++
		}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import dispensing csv")
	}
	return result, nil
}

func (s *service) importRow(ctx context.Context, repo Repository, actorID uuid.UUID, header csvx.Header, row []string, recordDate time.Time) error {
	name := header.Field(row, "name", "drug_name", "drug")
	if name == "" {
		return fmt.Errorf("drug name is required")
	}

	qtyRaw := header.Field(row, "quantity_dispensed", "quantity", "qty")
	qty, err := strconv.Atoi(qtyRaw)
	if err != nil || qty < 1 {
		return fmt.Errorf("invalid quantity %q", qtyRaw)
	}

	category, err := enums.ParseDispensingCategory(header.Field(row, "category"))
	if err != nil {
		return fmt.Errorf("invalid category %q", header.Field(row, "category"))
	}

	var notes *string
	if v := header.Field(row, "notes", "remarks"); v != "" {
		notes = &v
	}

	drug, err := repo.FindDrugByName(ctx, name, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("drug %q not found", name)
		}
		return fmt.Errorf("lookup drug: %v", err)
	}

	existing, err := repo.FindRecord(ctx, drug.ID, recordDate, category)
	switch {
	case err == nil:
		delta := qty - existing.QuantityDispensed
		if delta != 0 {
			ok, aerr := repo.AdjustStock(ctx, drug.ID, delta)
			if aerr != nil {
				return fmt.Errorf("adjust stock: %v", aerr)
			}
			if !ok {
				return fmt.Errorf("insufficient stock for %q", drug.Name)
			}
		}
		updates := map[string]any{"quantity_dispensed": qty}
		if notes != nil {
			updates["notes"] = *notes
		}
		if uerr := repo.UpdateRecord(ctx, existing.ID, updates); uerr != nil {
			// Undo the delta so a skipped row leaves stock untouched when the
			// rest of the import commits.
			if delta != 0 {
				if rerr := repo.RestoreStock(ctx, drug.ID, delta); rerr != nil {
					return fmt.Errorf("update record: %v (restore stock: %v)", uerr, rerr)
				}
			}
			return fmt.Errorf("update record: %v", uerr)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		ok, aerr := repo.AdjustStock(ctx, drug.ID, qty)
		if aerr != nil {
			return fmt.Errorf("adjust stock: %v", aerr)
		}
		if !ok {
			return fmt.Errorf("insufficient stock for %q", drug.Name)
		}
		_, cerr := repo.CreateRecord(ctx, &models.DispensingRecord{
			DrugID:            drug.ID,
			QuantityDispensed: qty,
			DispensingDate:    recordDate,
			Category:          category,
			Notes:             notes,
			RecordedBy:        actorID,
		})
		if cerr != nil {
			if rerr := repo.RestoreStock(ctx, drug.ID, qty); rerr != nil {
				return fmt.Errorf("insert record: %v (restore stock: %v)", cerr, rerr)
			}
			return fmt.Errorf("insert record: %v", cerr)
		}
		return nil
	default:
		return fmt.Errorf("lookup record: %v", err)
	}
}
