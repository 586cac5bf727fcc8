package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// ReservationRepo provides access to the reservations table and the
// seat lists attached to reservations. All timestamp fields are stored
// in UTC. Mutating methods have Tx variants so the booking core can
// run them inside one atomic unit of work together with seat and
// showtime updates.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `id, user_id, showtime_id, status, paid, total_price_cents, created_at, updated_at`

func scanReservation(scan func(dest ...interface{}) error) (*model.Reservation, error) {
	var res model.Reservation
	err := scan(&res.ID, &res.UserID, &res.ShowtimeID, &res.Status, &res.Paid,
		&res.TotalPriceCents, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: reservation", booking.ErrNotFound)
		}
		return nil, err
	}
	return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided record. The caller must commit or rollback.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, showtime_id, status, paid, total_price_cents)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.ShowtimeID, res.Status, res.Paid, res.TotalPriceCents)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the row to populate timestamps set by the database.
	sel := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	row, err := scanReservation(tx.QueryRowContext(ctx, sel, res.ID).Scan)
	if err != nil {
		return err
	}
	*res = *row
	return nil
}

// GetForUpdateTx loads a reservation under an exclusive row lock.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ? FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id).Scan)
}

// SetStatusTx updates the status and stamps updated_at.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return nil
}

// MarkPaidTx sets paid=true and stamps updated_at.
func (r *ReservationRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE reservations SET paid = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return nil
}

// GetView returns a reservation together with its seats.
func (r *ReservationRepo) GetView(ctx context.Context, id uint64) (*booking.ReservationView, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		return nil, err
	}
	views, err := r.attachSeats(ctx, []booking.ReservationView{{Reservation: *res}})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListByUser returns the user's reservations newest first, optionally
// filtered by paid flag and status. An empty slice is a valid result.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, f booking.ReservationFilter) ([]booking.ReservationView, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE user_id = ?`
	args := []interface{}{userID}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Paid != nil {
		q += ` AND paid = ?`
		args = append(args, *f.Paid)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	return r.queryViews(ctx, q, args...)
}

// ListConfirmed returns one page of CONFIRMED reservations (newest
// first) and the total CONFIRMED count for pagination.
func (r *ReservationRepo) ListConfirmed(ctx context.Context, p booking.Page) ([]booking.ReservationView, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE status = 'CONFIRMED'`).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + reservationCols + `
	      FROM reservations
	      WHERE status = 'CONFIRMED'
	      ORDER BY created_at DESC, id DESC
	      LIMIT ? OFFSET ?`
	views, err := r.queryViews(ctx, q, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (r *ReservationRepo) queryViews(ctx context.Context, q string, args ...interface{}) ([]booking.ReservationView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := make([]booking.ReservationView, 0)
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		views = append(views, booking.ReservationView{Reservation: *res})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.attachSeats(ctx, views)
}

// attachSeats populates the seat lists for all views in one query.
// Cancelled reservations have no linked seats anymore, so their lists
// stay empty — the link is the live claim, not a history.
func (r *ReservationRepo) attachSeats(ctx context.Context, views []booking.ReservationView) ([]booking.ReservationView, error) {
	if len(views) == 0 {
		return views, nil
	}
	ids := make([]interface{}, 0, len(views))
	placeholders := make([]string, 0, len(views))
	index := make(map[uint64]int, len(views))
	for i, v := range views {
		ids = append(ids, v.ID)
		placeholders = append(placeholders, "?")
		index[v.ID] = i
	}
	q := `SELECT id, showtime_id, seat_label, reserved, reservation_id
	      FROM seats
	      WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY reservation_id, id`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatLabel, &s.Reserved, &resID); err != nil {
			return nil, err
		}
		if !resID.Valid {
			continue
		}
		rid := uint64(resID.Int64)
		s.ReservationID = &rid
		if i, ok := index[rid]; ok {
			views[i].Seats = append(views[i].Seats, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}
