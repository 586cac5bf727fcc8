package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cinetix/movie-reservation/internal/model"
)

// SeatRepo provides access to the seats table. Seats are the hot shared
// resource of the whole system: every mutation here runs against rows
// previously locked by LockByIDsTx so that two overlapping Reserve
// calls serialize instead of double-booking.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// LockByIDsTx acquires exclusive locks on the seat rows with the given
// ids scoped to the showtime and returns them in ascending id order.
// The caller must pass seatIDs already sorted ascending; combined with
// ORDER BY id this yields one canonical lock acquisition order across
// all concurrent requests, which is what rules out deadlock between
// overlapping seat sets. Ids that don't exist or belong to a different
// showtime are simply absent from the result.
func (r *SeatRepo) LockByIDsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for i, id := range seatIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := `SELECT id, showtime_id, seat_label, reserved, reservation_id
	      FROM seats
	      WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY id
	      FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatLabel, &s.Reserved, &resID); err != nil {
			return nil, err
		}
		if resID.Valid {
			rid := uint64(resID.Int64)
			s.ReservationID = &rid
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// AssignTx marks the seats reserved and links them to the reservation.
// The rows must already be held FOR UPDATE by the same transaction.
func (r *SeatRepo) AssignTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, reservationID uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, reservationID, showtimeID)
	for i, id := range seatIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := `UPDATE seats SET reserved = TRUE, reservation_id = ?
	      WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ReleaseByReservationTx frees every seat linked to the reservation and
// returns the freed seat ids so the caller can restore the showtime
// counter by exactly that count.
func (r *SeatRepo) ReleaseByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM seats WHERE reservation_id = ? ORDER BY id FOR UPDATE`, reservationID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE seats SET reserved = FALSE, reservation_id = NULL WHERE reservation_id = ?`,
		reservationID); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByShowtime retrieves all seats of a showtime ordered by id. Used
// by the public seat-map endpoint; no locking.
func (r *SeatRepo) GetByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	const q = `SELECT id, showtime_id, seat_label, reserved, reservation_id
	           FROM seats
	           WHERE showtime_id = ?
	           ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var resID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.SeatLabel, &s.Reserved, &resID); err != nil {
			return nil, err
		}
		if resID.Valid {
			rid := uint64(resID.Int64)
			s.ReservationID = &rid
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
