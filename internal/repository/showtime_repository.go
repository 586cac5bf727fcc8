package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// ShowtimeRepo provides access to the showtimes table. The
// available_seats counter lives in the same row as the rest of the
// showtime and is only ever mutated through AdjustAvailableTx inside
// the transaction that also claims or releases seat rows; it is never
// cached or recomputed outside the transaction boundary.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

const showtimeCols = `id, movie_id, theater_id, starts_at, price_cents, total_seats, available_seats, created_at, updated_at`

func scanShowtime(row *sql.Row) (*model.Showtime, error) {
	var st model.Showtime
	err := row.Scan(&st.ID, &st.MovieID, &st.TheaterID, &st.StartsAt, &st.PriceCents,
		&st.TotalSeats, &st.AvailableSeats, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: showtime", booking.ErrNotFound)
		}
		return nil, err
	}
	return &st, nil
}

// GetByID fetches a showtime without locking.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	q := `SELECT ` + showtimeCols + ` FROM showtimes WHERE id = ?`
	return scanShowtime(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx fetches a showtime under an exclusive row lock held
// until the surrounding transaction commits or rolls back.
func (r *ShowtimeRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Showtime, error) {
	q := `SELECT ` + showtimeCols + ` FROM showtimes WHERE id = ? FOR UPDATE`
	return scanShowtime(tx.QueryRowContext(ctx, q, id))
}

// AdjustAvailableTx adds delta to available_seats. The row must already
// be locked via GetForUpdateTx. The WHERE guard is a belt against the
// counter ever leaving [0, total_seats]; zero rows affected means the
// adjustment would have violated it.
func (r *ShowtimeRepo) AdjustAvailableTx(ctx context.Context, tx *sql.Tx, id uint64, delta int32) error {
	const q = `UPDATE showtimes
	           SET available_seats = available_seats + ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?
	             AND available_seats + ? >= 0
	             AND available_seats + ? <= total_seats`
	res, err := tx.ExecContext(ctx, q, delta, id, delta, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("available_seats adjustment by %d rejected for showtime %d", delta, id)
	}
	return nil
}

// CreateWithSeats inserts a showtime and one seat row per label inside
// a single transaction. total_seats and available_seats both start at
// the label count; price and seat inventory are immutable afterwards.
func (r *ShowtimeRepo) CreateWithSeats(ctx context.Context, st *model.Showtime, seatLabels []string) error {
	if len(seatLabels) == 0 {
		return fmt.Errorf("%w: at least one seat label is required", booking.ErrInvalidArgument)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO showtimes (movie_id, theater_id, starts_at, price_cents, total_seats, available_seats)
	             VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, st.MovieID, st.TheaterID,
		st.StartsAt.UTC().Format("2006-01-02 15:04:05"), st.PriceCents,
		len(seatLabels), len(seatLabels))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	st.TotalSeats = uint32(len(seatLabels))
	st.AvailableSeats = uint32(len(seatLabels))

	query := `INSERT INTO seats (showtime_id, seat_label) VALUES `
	args := make([]interface{}, 0, len(seatLabels)*2)
	for i, label := range seatLabels {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, st.ID, label)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RevenueCents sums total_price_cents over CONFIRMED reservations whose
// showtime starts within [from, to].
func (r *ShowtimeRepo) RevenueCents(ctx context.Context, from, to string) (uint64, error) {
	const q = `SELECT COALESCE(SUM(r.total_price_cents), 0)
	           FROM reservations r
	           JOIN showtimes s ON s.id = r.showtime_id
	           WHERE r.status = 'CONFIRMED' AND s.starts_at BETWEEN ? AND ?`
	var sum uint64
	if err := r.db.QueryRowContext(ctx, q, from, to).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
