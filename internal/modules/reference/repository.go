package reference

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/database"
	"github.com/compositedge/bondmonitor/internal/domain"
)

// Repository persists normalized reference records in reference.db so the
// monitor can serve a reference-only view before the first source reload.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new reference repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "reference").Logger(),
	}
}

// ReplaceAll swaps the cached reference set atomically.
func (r *Repository) ReplaceAll(refs []domain.BondReference) error {
	now := time.Now().Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM bond_reference"); err != nil {
			return fmt.Errorf("failed to clear bond_reference: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO bond_reference (symbol, coupon_rate, redemption_date, updated_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, ref := range refs {
			if _, err := stmt.Exec(ref.Symbol, ref.CouponRate, ref.RedemptionDate.Format("2006-01-02"), now); err != nil {
				return fmt.Errorf("failed to insert %s: %w", ref.Symbol, err)
			}
		}
		return nil
	})
}

// GetAll returns every cached reference record.
func (r *Repository) GetAll() ([]domain.BondReference, error) {
	rows, err := r.db.Query("SELECT symbol, coupon_rate, redemption_date FROM bond_reference ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query bond_reference: %w", err)
	}
	defer rows.Close()

	var refs []domain.BondReference
	for rows.Next() {
		var ref domain.BondReference
		var dateStr string
		if err := rows.Scan(&ref.Symbol, &ref.CouponRate, &dateStr); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan reference row")
			continue
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			r.log.Warn().Str("symbol", ref.Symbol).Str("date", dateStr).Msg("Skipping reference row with bad stored date")
			continue
		}
		ref.RedemptionDate = d
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bond_reference: %w", err)
	}

	return refs, nil
}

// Count returns the number of cached reference records.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM bond_reference").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bond_reference: %w", err)
	}
	return n, nil
}
