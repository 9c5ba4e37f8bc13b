package dispensing

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
)

type recordKey struct {
	drugID   uuid.UUID
	date     string
	category enums.DispensingCategory
}

type stubDispensingRepo struct {
	drugs     map[uuid.UUID]*models.Drug
	records   map[uuid.UUID]*models.DispensingRecord
	byKey     map[recordKey]uuid.UUID
	createErr error
	updateErr error
}

func newStubDispensingRepo() *stubDispensingRepo {
	return &stubDispensingRepo{
		drugs:   map[uuid.UUID]*models.Drug{},
		records: map[uuid.UUID]*models.DispensingRecord{},
		byKey:   map[recordKey]uuid.UUID{},
	}
}

func (s *stubDispensingRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDispensingRepo) FindDrugForOwner(ctx context.Context, drugID, ownerID uuid.UUID) (*models.Drug, error) {
	drug, ok := s.drugs[drugID]
	if !ok || drug.CreatedBy != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return drug, nil
}

func (s *stubDispensingRepo) FindDrugByName(ctx context.Context, name string, ownerID uuid.UUID) (*models.Drug, error) {
	for _, drug := range s.drugs {
		if strings.EqualFold(drug.Name, strings.TrimSpace(name)) && drug.CreatedBy == ownerID {
			return drug, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDispensingRepo) FindRecord(ctx context.Context, drugID uuid.UUID, date time.Time, category enums.DispensingCategory) (*models.DispensingRecord, error) {
	key := recordKey{drugID: drugID, date: date.Format("2006-01-02"), category: category}
	id, ok := s.byKey[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	record := *s.records[id]
	return &record, nil
}

func (s *stubDispensingRepo) FindRecordForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.DispensingRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	drug, ok := s.drugs[record.DrugID]
	if !ok || drug.CreatedBy != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *stubDispensingRepo) CreateRecord(ctx context.Context, record *models.DispensingRecord) (*models.DispensingRecord, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	key := recordKey{drugID: record.DrugID, date: record.DispensingDate.Format("2006-01-02"), category: record.Category}
	if _, exists := s.byKey[key]; exists {
		return nil, fmt.Errorf(`duplicate key value violates unique constraint "ux_dispensing_drug_date_category"`)
	}
	s.records[record.ID] = record
	s.byKey[key] = record.ID
	return record, nil
}

func (s *stubDispensingRepo) UpdateRecord(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	record, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if qty, ok := updates["quantity_dispensed"].(int); ok {
		record.QuantityDispensed = qty
	}
	if notes, ok := updates["notes"].(string); ok {
		record.Notes = &notes
	}
	return nil
}

func (s *stubDispensingRepo) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	record, ok := s.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	key := recordKey{drugID: record.DrugID, date: record.DispensingDate.Format("2006-01-02"), category: record.Category}
	delete(s.byKey, key)
	delete(s.records, id)
	return nil
}

func (s *stubDispensingRepo) ListRecords(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]models.DispensingRecord, error) {
	var out []models.DispensingRecord
	for _, record := range s.records {
		drug, ok := s.drugs[record.DrugID]
		if !ok || drug.CreatedBy != ownerID {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *stubDispensingRepo) Summarize(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]SummaryRow, error) {
	totals := map[recordKey]int{}
	for _, record := range s.records {
		drug, ok := s.drugs[record.DrugID]
		if !ok || drug.CreatedBy != ownerID {
			continue
		}
		key := recordKey{drugID: record.DrugID, category: record.Category}
		totals[key] += record.QuantityDispensed
	}
	var out []SummaryRow
	for key, total := range totals {
		out = append(out, SummaryRow{
			DrugID:        key.drugID,
			DrugName:      s.drugs[key.drugID].Name,
			Category:      key.category,
			TotalQuantity: total,
		})
	}
	return out, nil
}

func (s *stubDispensingRepo) AdjustStock(ctx context.Context, drugID uuid.UUID, delta int) (bool, error) {
	drug, ok := s.drugs[drugID]
	if !ok || drug.Stock < delta {
		return false, nil
	}
	drug.Stock -= delta
	return true, nil
}

func (s *stubDispensingRepo) RestoreStock(ctx context.Context, drugID uuid.UUID, qty int) error {
	drug, ok := s.drugs[drugID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	drug.Stock += qty
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(repo *stubDispensingRepo) *service {
	svc, _ := NewService(repo, stubTxRunner{}, nil)
	s := svc.(*service)
	s.now = func() time.Time { return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC) }
	return s
}

func seedDrug(repo *stubDispensingRepo, ownerID uuid.UUID, stock int) *models.Drug {
	drug := &models.Drug{ID: uuid.New(), Name: "Paracetamol 500mg", Stock: stock, CreatedBy: ownerID}
	repo.drugs[drug.ID] = drug
	return drug
}

func TestRecordDeductsStock(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	record, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 12,
		Category: enums.DispensingCategoryOPD,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if drug.Stock != 18 {
		t.Fatalf("expected stock 18 got %d", drug.Stock)
	}
	if record.DispensingDate.Format("2006-01-02") != "2026-03-14" {
		t.Fatalf("unexpected record date %v", record.DispensingDate)
	}
}

func TestRecordSameQuantityIsIdempotent(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	input := RecordInput{ActorID: ownerID, DrugID: drug.ID, Quantity: 10, Category: enums.DispensingCategoryIPD}
	if _, err := svc.Record(context.Background(), input); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := svc.Record(context.Background(), input); err != nil {
		t.Fatalf("second record: %v", err)
	}
	if drug.Stock != 20 {
		t.Fatalf("re-recording the same quantity must not move stock, got %d", drug.Stock)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected one record got %d", len(repo.records))
	}
}

func TestRecordReRecordAppliesDeltaOnly(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	base := RecordInput{ActorID: ownerID, DrugID: drug.ID, Quantity: 10, Category: enums.DispensingCategoryOPD}
	if _, err := svc.Record(context.Background(), base); err != nil {
		t.Fatalf("first record: %v", err)
	}

	// Lowering the quantity gives stock back.
	base.Quantity = 4
	if _, err := svc.Record(context.Background(), base); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if drug.Stock != 26 {
		t.Fatalf("expected stock 26 got %d", drug.Stock)
	}
}

func TestRecordRejectsOtherDates(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	yesterday := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	_, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 5,
		Category: enums.DispensingCategoryOPD,
		Date:     &yesterday,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOnlyToday {
		t.Fatalf("expected only-today error got %v", err)
	}
}

func TestRecordForeignDrugIsNotFound(t *testing.T) {
	repo := newStubDispensingRepo()
	drug := seedDrug(repo, uuid.New(), 30)
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RecordInput{
		ActorID:  uuid.New(),
		DrugID:   drug.ID,
		Quantity: 5,
		Category: enums.DispensingCategoryOPD,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestRecordInsufficientStock(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 4)
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 5,
		Category: enums.DispensingCategoryOPD,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock got %v", err)
	}
	if drug.Stock != 4 {
		t.Fatalf("stock must be untouched, got %d", drug.Stock)
	}
}

func TestRecordConcurrentDuplicateReported(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	repo.createErr = fmt.Errorf(`duplicate key value violates unique constraint "ux_dispensing_drug_date_category"`)
	svc := newTestService(repo)

	_, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 5,
		Category: enums.DispensingCategoryOPD,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDuplicate {
		t.Fatalf("expected duplicate error got %v", err)
	}
}

func TestDeleteRestoresStock(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	record, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 7,
		Category: enums.DispensingCategoryOutreach,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if drug.Stock != 23 {
		t.Fatalf("expected stock 23 got %d", drug.Stock)
	}

	if err := svc.Delete(context.Background(), record.ID, ownerID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if drug.Stock != 30 {
		t.Fatalf("expected stock restored to 30 got %d", drug.Stock)
	}
	if len(repo.records) != 0 {
		t.Fatalf("expected record removed")
	}
}

func TestDeleteForeignRecordIsNotFound(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	record, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 7,
		Category: enums.DispensingCategoryOPD,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	err = svc.Delete(context.Background(), record.ID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
	if drug.Stock != 23 {
		t.Fatalf("stock must be untouched, got %d", drug.Stock)
	}
}

func TestImportCSVPartialSuccess(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	input := strings.Join([]string{
		"Drug Name,Quantity,Category,Notes",
		"paracetamol 500mg,6,opd,morning round",
		"Unknown Drug,2,OPD,",
		"Paracetamol 500mg,100,IPD,",
		"Paracetamol 500mg,notanumber,OPD,",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), ownerID, strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Total != 4 || result.Imported != 1 || len(result.Errors) != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if drug.Stock != 24 {
		t.Fatalf("expected stock 24 got %d", drug.Stock)
	}
}

func TestImportCSVFailedInsertRestoresStock(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 10)
	repo.createErr = fmt.Errorf("connection reset")
	svc := newTestService(repo)

	input := strings.Join([]string{
		"Drug Name,Quantity,Category",
		"Paracetamol 500mg,4,OPD",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), ownerID, strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Imported != 0 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if drug.Stock != 10 {
		t.Fatalf("skipped row must not move stock, got %d", drug.Stock)
	}
}

func TestImportCSVFailedUpdateRestoresStock(t *testing.T) {
	repo := newStubDispensingRepo()
	ownerID := uuid.New()
	drug := seedDrug(repo, ownerID, 30)
	svc := newTestService(repo)

	record, err := svc.Record(context.Background(), RecordInput{
		ActorID:  ownerID,
		DrugID:   drug.ID,
		Quantity: 2,
		Category: enums.DispensingCategoryOPD,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if drug.Stock != 28 {
		t.Fatalf("expected stock 28 got %d", drug.Stock)
	}

	repo.updateErr = fmt.Errorf("connection reset")
	input := strings.Join([]string{
		"Drug Name,Quantity,Category",
		"Paracetamol 500mg,5,OPD",
	}, "\n")

	result, err := svc.ImportCSV(context.Background(), ownerID, strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Imported != 0 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if drug.Stock != 28 {
		t.Fatalf("skipped row must not move stock, got %d", drug.Stock)
	}
	if repo.records[record.ID].QuantityDispensed != 2 {
		t.Fatalf("record quantity must be unchanged, got %d", repo.records[record.ID].QuantityDispensed)
	}
}
