// Package history maintains the rolling daily yield/volume series used by
// the opportunity scanner. One observation per symbol per calendar date,
// first write wins (a daily snapshot should not churn intraday), pruned to
// the 7 most recent distinct dates.
package history

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/compositedge/bondmonitor/internal/database"
	"github.com/compositedge/bondmonitor/internal/domain"
)

// retainDates is the rolling window of distinct calendar dates kept.
const retainDates = 7

// Repository persists yield history in history.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new yield history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "history").Logger(),
	}
}

// RecordSnapshot stores today's observation for every bond that has a
// bid-side yield, then prunes the window. INSERT OR IGNORE keeps the first
// observation of the day; later cycles on the same date are no-ops.
func (r *Repository) RecordSnapshot(date string, bonds []domain.PricedBond) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO yield_history (date, symbol, bid_ytm, ask_ytm, volume)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bonds {
			if b.BidYTM == nil {
				continue
			}
			var askYTM interface{}
			if b.AskYTM != nil {
				askYTM = *b.AskYTM
			}
			if _, err := stmt.Exec(date, b.Symbol, *b.BidYTM, askYTM, b.Volume); err != nil {
				return fmt.Errorf("failed to record %s: %w", b.Symbol, err)
			}
		}

		// Keep only the most recent distinct dates.
		_, err = tx.Exec(`
			DELETE FROM yield_history WHERE date NOT IN (
				SELECT DISTINCT date FROM yield_history ORDER BY date DESC LIMIT ?
			)
		`, retainDates)
		if err != nil {
			return fmt.Errorf("failed to prune yield history: %w", err)
		}

		return nil
	})
}

// Averages returns the arithmetic means over whatever points exist for the
// symbol. Each sub-average is nil when it has zero data points.
func (r *Repository) Averages(symbol string) (domain.HistoryAverages, error) {
	rows, err := r.db.Query("SELECT bid_ytm, ask_ytm, volume FROM yield_history WHERE symbol = ?", symbol)
	if err != nil {
		return domain.HistoryAverages{}, fmt.Errorf("failed to query history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bids, asks, volumes []float64
	for rows.Next() {
		var bid, ask sql.NullFloat64
		var volume float64
		if err := rows.Scan(&bid, &ask, &volume); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to scan history row")
			continue
		}
		if bid.Valid {
			bids = append(bids, bid.Float64)
		}
		if ask.Valid {
			asks = append(asks, ask.Float64)
		}
		volumes = append(volumes, volume)
	}
	if err := rows.Err(); err != nil {
		return domain.HistoryAverages{}, fmt.Errorf("error iterating history for %s: %w", symbol, err)
	}

	return domain.HistoryAverages{
		BidAvg:    meanOrNil(bids),
		AskAvg:    meanOrNil(asks),
		VolumeAvg: meanOrNil(volumes),
	}, nil
}

// AveragesAll returns averages for every symbol present in the window.
// One query instead of per-bond lookups on the hot refresh path.
func (r *Repository) AveragesAll() (map[string]domain.HistoryAverages, error) {
	rows, err := r.db.Query("SELECT symbol, bid_ytm, ask_ytm, volume FROM yield_history")
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	type acc struct {
		bids, asks, volumes []float64
	}
	accs := make(map[string]*acc)

	for rows.Next() {
		var symbol string
		var bid, ask sql.NullFloat64
		var volume float64
		if err := rows.Scan(&symbol, &bid, &ask, &volume); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan history row")
			continue
		}
		a, ok := accs[symbol]
		if !ok {
			a = &acc{}
			accs[symbol] = a
		}
		if bid.Valid {
			a.bids = append(a.bids, bid.Float64)
		}
		if ask.Valid {
			a.asks = append(a.asks, ask.Float64)
		}
		a.volumes = append(a.volumes, volume)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	out := make(map[string]domain.HistoryAverages, len(accs))
	for symbol, a := range accs {
		out[symbol] = domain.HistoryAverages{
			BidAvg:    meanOrNil(a.bids),
			AskAvg:    meanOrNil(a.asks),
			VolumeAvg: meanOrNil(a.volumes),
		}
	}
	return out, nil
}

// Points returns the retained observations for one symbol, oldest first.
func (r *Repository) Points(symbol string) ([]domain.YieldHistoryPoint, error) {
	rows, err := r.db.Query(
		"SELECT date, bid_ytm, ask_ytm, volume FROM yield_history WHERE symbol = ? ORDER BY date",
		symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query points for %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []domain.YieldHistoryPoint
	for rows.Next() {
		p := domain.YieldHistoryPoint{Symbol: symbol}
		var bid, ask sql.NullFloat64
		if err := rows.Scan(&p.Date, &bid, &ask, &p.Volume); err != nil {
			r.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to scan history point")
			continue
		}
		if bid.Valid {
			p.BidYTM = domain.Float64Ptr(bid.Float64)
		}
		if ask.Valid {
			p.AskYTM = domain.Float64Ptr(ask.Float64)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points for %s: %w", symbol, err)
	}

	return points, nil
}

// DistinctDates returns the retained dates, newest first.
func (r *Repository) DistinctDates() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT date FROM yield_history ORDER BY date DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return domain.Float64Ptr(stat.Mean(values, nil))
}
