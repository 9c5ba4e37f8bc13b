package dispensing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockMetrics interface {
	IncStockMutation(operation, outcome string)
}

// Service records daily dispensed quantities against the stock ledger.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.DispensingRecord, error)
	Delete(ctx context.Context, id, actorID uuid.UUID) error
	List(ctx context.Context, actorID uuid.UUID, filter ListFilter) ([]models.DispensingRecord, error)
	ListToday(ctx context.Context, actorID uuid.UUID) ([]models.DispensingRecord, error)
	Summary(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]SummaryRow, error)
	ImportCSV(ctx context.Context, actorID uuid.UUID, r io.Reader) (*ImportResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics stockMetrics
	now     func() time.Time
}

// RecordInput carries one dispensing entry. Date is optional and, when set,
// must equal the server's current date.
type RecordInput struct {
	ActorID  uuid.UUID
	DrugID   uuid.UUID
	Quantity int
	Category enums.DispensingCategory
	Notes    *string
	Date     *time.Time
}

// NewService builds the dispensing service with the required dependencies.
func NewService(repo Repository, tx txRunner, metrics stockMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispensing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: metrics, now: time.Now}, nil
}

func today(now func() time.Time) time.Time {
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.DispensingRecord, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity_dispensed must be at least 1")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispensing category")
	}

	recordDate := today(s.now)
	if input.Date != nil && !sameDate(*input.Date, recordDate) {
		return nil, pkgerrors.New(pkgerrors.CodeOnlyToday, "dispensing can only be recorded for today").
			WithDetails(map[string]any{
				"requested_date": input.Date.Format("2006-01-02"),
				"server_date":    recordDate.Format("2006-01-02"),
			})
	}

	var saved *models.DispensingRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		drug, err := repo.FindDrugForOwner(ctx, input.DrugID, input.ActorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "drug not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load drug")
		}

		existing, err := repo.FindRecord(ctx, drug.ID, recordDate, input.Category)
		switch {
		case err == nil:
			saved, err = s.updateExisting(ctx, repo, drug, existing, input)
			return err
		case errors.Is(err, gorm.ErrRecordNotFound):
			saved, err = s.insertNew(ctx, repo, drug, recordDate, input)
			return err
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup dispensing record")
		}
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// updateExisting re-records today's quantity: only the difference between the
// new and old quantity moves on the stock ledger.
func (s *service) updateExisting(ctx context.Context, repo Repository, drug *models.Drug, existing *models.DispensingRecord, input RecordInput) (*models.DispensingRecord, error) {
	delta := input.Quantity - existing.QuantityDispensed
	if delta != 0 {
		ok, err := repo.AdjustStock(ctx, drug.ID, delta)
		if err != nil {
			s.countStock("adjust", "error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust stock")
		}
		if !ok {
			s.countStock("adjust", "insufficient")
			return nil, insufficientStock(ctx, repo, drug, delta)
		}
		s.countStock("adjust", "ok")
	}

	updates := map[string]any{"quantity_dispensed": input.Quantity}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if err := repo.UpdateRecord(ctx, existing.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update dispensing record")
	}

	existing.QuantityDispensed = input.Quantity
	if input.Notes != nil {
		existing.Notes = input.Notes
	}
	return existing, nil
}

func (s *service) insertNew(ctx context.Context, repo Repository, drug *models.Drug, recordDate time.Time, input RecordInput) (*models.DispensingRecord, error) {
	ok, err := repo.AdjustStock(ctx, drug.ID, input.Quantity)
	if err != nil {
		s.countStock("adjust", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust stock")
	}
	if !ok {
		s.countStock("adjust", "insufficient")
		return nil, insufficientStock(ctx, repo, drug, input.Quantity)
	}
	s.countStock("adjust", "ok")

	record := &models.DispensingRecord{
		DrugID:            drug.ID,
		QuantityDispensed: input.Quantity,
		DispensingDate:    recordDate,
		Category:          input.Category,
		Notes:             input.Notes,
		RecordedBy:        input.ActorID,
	}
	created, err := repo.CreateRecord(ctx, record)
	if err != nil {
		if db.IsUniqueViolation(err, "ux_dispensing_drug_date_category") {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicate, "a record for this drug, date and category already exists").
				WithDetails(map[string]any{
					"drug_id":  drug.ID,
					"category": input.Category,
				})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert dispensing record")
	}
	return created, nil
}

func insufficientStock(ctx context.Context, repo Repository, drug *models.Drug, requested int) error {
	available := drug.Stock
	if fresh, err := repo.FindDrugForOwner(ctx, drug.ID, drug.CreatedBy); err == nil {
		available = fresh.Stock
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("only %d units available", available)).
		WithDetails(map[string]any{
			"drug_name": drug.Name,
			"requested": requested,
			"available": available,
		})
}

// Delete removes a record and returns its quantity to the shelf in one
// transaction.
func (s *service) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindRecordForOwner(ctx, id, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispensing record not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dispensing record")
		}

		if err := repo.RestoreStock(ctx, record.DrugID, record.QuantityDispensed); err != nil {
			s.countStock("restore", "error")
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
		s.countStock("restore", "ok")

		if err := repo.DeleteRecord(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete dispensing record")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, actorID uuid.UUID, filter ListFilter) ([]models.DispensingRecord, error) {
	records, err := s.repo.ListRecords(ctx, actorID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dispensing records")
	}
	return records, nil
}

func (s *service) ListToday(ctx context.Context, actorID uuid.UUID) ([]models.DispensingRecord, error) {
	day := today(s.now)
	return s.List(ctx, actorID, ListFilter{From: &day, To: &day})
}

func (s *service) Summary(ctx context.Context, actorID uuid.UUID, from, to time.Time) ([]SummaryRow, error) {
	if to.Before(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range is inverted")
	}
	rows, err := s.repo.Summarize(ctx, actorID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize dispensing")
	}
	return rows, nil
}

func (s *service) countStock(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.IncStockMutation(operation, outcome)
	}
}
