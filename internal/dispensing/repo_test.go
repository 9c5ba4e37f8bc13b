package dispensing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

func setupDispensingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	drugs := `
CREATE TABLE IF NOT EXISTS drugs (
  id TEXT PRIMARY KEY,
  drug_type TEXT NOT NULL,
  name TEXT NOT NULL,
  batch_no TEXT NOT NULL,
  description TEXT,
  stock INTEGER NOT NULL DEFAULT 0,
  mfg_date DATE,
  exp_date DATE,
  price NUMERIC NOT NULL DEFAULT 0,
  category TEXT,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	records := `
CREATE TABLE IF NOT EXISTS dispensing_records (
  id TEXT PRIMARY KEY,
  drug_id TEXT NOT NULL,
  quantity_dispensed INTEGER NOT NULL,
  dispensing_date DATE NOT NULL,
  category TEXT NOT NULL,
  notes TEXT,
  recorded_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (drug_id, dispensing_date, category)
);`
	require.NoError(t, db.Exec(drugs).Error)
	require.NoError(t, db.Exec(records).Error)
	return db
}

func newTestDrug(t *testing.T, db *gorm.DB, name string, stock int, owner uuid.UUID) *models.Drug {
	t.Helper()

	drug := &models.Drug{
		ID:        uuid.New(),
		DrugType:  "Tablet",
		Name:      name,
		BatchNo:   "B-001",
		Stock:     stock,
		Price:     decimal.NewFromFloat(4.50),
		CreatedBy: owner,
	}
	require.NoError(t, db.Create(drug).Error)
	return drug
}

func insertRecord(t *testing.T, db *gorm.DB, drugID uuid.UUID, date string, category enums.DispensingCategory, qty int, recordedBy uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := db.Exec(`
		INSERT INTO dispensing_records
		  (id, drug_id, quantity_dispensed, dispensing_date, category, recorded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, drugID, qty, date, category, recordedBy).Error
	require.NoError(t, err)
	return id
}

func TestRepositoryAdjustStock(t *testing.T) {
	db := setupDispensingTestDB(t)
	repo := NewRepository(db)

	owner := uuid.New()
	drug := newTestDrug(t, db, "Paracetamol", 10, owner)

	ok, err := repo.AdjustStock(context.Background(), drug.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	var stock int
	require.NoError(t, db.Raw("SELECT stock FROM drugs WHERE id = ?", drug.ID).Scan(&stock).Error)
	assert.Equal(t, 6, stock)

	ok, err = repo.AdjustStock(context.Background(), drug.ID, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Raw("SELECT stock FROM drugs WHERE id = ?", drug.ID).Scan(&stock).Error)
	assert.Equal(t, 6, stock)

	require.NoError(t, repo.RestoreStock(context.Background(), drug.ID, 4))
	require.NoError(t, db.Raw("SELECT stock FROM drugs WHERE id = ?", drug.ID).Scan(&stock).Error)
	assert.Equal(t, 10, stock)
}

func TestRepositoryFindRecord_byDrugDateCategory(t *testing.T) {
	db := setupDispensingTestDB(t)
	repo := NewRepository(db)

	owner := uuid.New()
	drug := newTestDrug(t, db, "Paracetamol", 50, owner)
	id := insertRecord(t, db, drug.ID, "2026-08-26", enums.DispensingCategoryOPD, 5, owner)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	record, err := repo.FindRecord(context.Background(), drug.ID, date, enums.DispensingCategoryOPD)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, 5, record.QuantityDispensed)

	_, err = repo.FindRecord(context.Background(), drug.ID, date, enums.DispensingCategoryIPD)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListRecords_ownerScopedAndFiltered(t *testing.T) {
	db := setupDispensingTestDB(t)
	repo := NewRepository(db)

	owner := uuid.New()
	other := uuid.New()
	mine := newTestDrug(t, db, "Paracetamol", 50, owner)
	theirs := newTestDrug(t, db, "Ibuprofen", 50, other)

	insertRecord(t, db, mine.ID, "2026-08-25", enums.DispensingCategoryOPD, 3, owner)
	insertRecord(t, db, mine.ID, "2026-08-26", enums.DispensingCategoryIPD, 2, owner)
	insertRecord(t, db, theirs.ID, "2026-08-26", enums.DispensingCategoryOPD, 9, other)

	list, err := repo.ListRecords(context.Background(), owner, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].QuantityDispensed)
	require.NotNil(t, list[0].Drug)
	assert.Equal(t, "Paracetamol", list[0].Drug.Name)

	opd := enums.DispensingCategoryOPD
	list, err = repo.ListRecords(context.Background(), owner, ListFilter{Category: &opd})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].QuantityDispensed)
}

func TestRepositorySummarize(t *testing.T) {
	db := setupDispensingTestDB(t)
	repo := NewRepository(db)

	owner := uuid.New()
	para := newTestDrug(t, db, "Paracetamol", 50, owner)
	ibu := newTestDrug(t, db, "Ibuprofen", 50, owner)

	insertRecord(t, db, para.ID, "2026-08-24", enums.DispensingCategoryOPD, 3, owner)
	insertRecord(t, db, para.ID, "2026-08-25", enums.DispensingCategoryOPD, 4, owner)
	insertRecord(t, db, para.ID, "2026-08-25", enums.DispensingCategoryIPD, 1, owner)
	insertRecord(t, db, ibu.ID, "2026-08-25", enums.DispensingCategoryOPD, 6, owner)

	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	rows, err := repo.Summarize(context.Background(), owner, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	totals := map[string]int{}
	for _, row := range rows {
		totals[row.DrugName+"/"+row.Category.String()] = row.TotalQuantity
	}
	assert.Equal(t, 7, totals["Paracetamol/OPD"])
	assert.Equal(t, 1, totals["Paracetamol/IPD"])
	assert.Equal(t, 6, totals["Ibuprofen/OPD"])
}
