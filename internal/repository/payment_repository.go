package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// PaymentRepo provides access to the payments table. At most one
// payment row exists per reservation (unique key on reservation_id);
// the reconciler serializes webhook events and cancellation against
// each other by locking this row.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `id, reservation_id, external_ref, amount_cents, status, created_at, updated_at`

func scanPayment(scan func(dest ...interface{}) error) (*model.Payment, error) {
	var p model.Payment
	var ref sql.NullString
	err := scan(&p.ID, &p.ReservationID, &ref, &p.AmountCents, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment", booking.ErrNotFound)
		}
		return nil, err
	}
	if ref.Valid {
		r := ref.String
		p.ExternalRef = &r
	}
	return &p, nil
}

// CreateTx inserts a payment row within the given transaction and
// populates its ID and timestamps.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, external_ref, amount_cents, status)
	           VALUES (?, ?, ?, ?)`
	var ref interface{}
	if p.ExternalRef != nil {
		ref = *p.ExternalRef
	}
	result, err := tx.ExecContext(ctx, q, p.ReservationID, ref, p.AmountCents, p.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	sel := `SELECT ` + paymentCols + ` FROM payments WHERE id = ?`
	row, err := scanPayment(tx.QueryRowContext(ctx, sel, p.ID).Scan)
	if err != nil {
		return err
	}
	*p = *row
	return nil
}

// GetByExternalRefTx loads a payment by the gateway's reference id
// under an exclusive row lock.
func (r *PaymentRepo) GetByExternalRefTx(ctx context.Context, tx *sql.Tx, ref string) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE external_ref = ? FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, q, ref).Scan)
}

// GetByReservationForUpdateTx loads the payment keyed by the
// reservation under an exclusive row lock.
func (r *PaymentRepo) GetByReservationForUpdateTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE reservation_id = ? FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, q, reservationID).Scan)
}

// GetByReservation loads the payment for a reservation without locking.
func (r *PaymentRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments WHERE reservation_id = ?`
	return scanPayment(r.db.QueryRowContext(ctx, q, reservationID).Scan)
}

// SetStatusTx updates the status and stamps updated_at.
func (r *PaymentRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE payments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	return nil
}

// SetExternalRefTx records the gateway reference within a transaction.
func (r *PaymentRepo) SetExternalRefTx(ctx context.Context, tx *sql.Tx, id uint64, ref string) error {
	const q = `UPDATE payments SET external_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, ref, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	return nil
}

// SetExternalRef records the gateway reference outside any transaction.
// Used after checkout-session creation, which deliberately happens
// after the PENDING row has committed.
func (r *PaymentRepo) SetExternalRef(ctx context.Context, id uint64, ref string) error {
	const q = `UPDATE payments SET external_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, ref, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	return nil
}
