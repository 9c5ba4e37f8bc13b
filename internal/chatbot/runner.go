package chatbot

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// gormRunner executes chatbot queries against the primary database inside a
// read-only transaction with a statement timeout, so a pathological generated
// query can neither write nor hog a connection.
type gormRunner struct {
	db      *gorm.DB
	timeout time.Duration
	maxRows int
}

// NewQueryRunner builds a QueryRunner on the shared GORM handle.
func NewQueryRunner(db *gorm.DB, timeout time.Duration, maxRows int) (QueryRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if maxRows <= 0 {
		maxRows = 20
	}
	return &gormRunner{db: db, timeout: timeout, maxRows: maxRows}, nil
}

func (r *gormRunner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var rows []map[string]any
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET TRANSACTION READ ONLY").Error; err != nil {
			return err
		}
		if r.timeout > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", r.timeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		return tx.Raw(query, args...).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > r.maxRows {
		rows = rows[:r.maxRows]
	}
	return rows, nil
}
