package model

// Seat is an individually allocatable unit of a showtime's inventory.
// A seat belongs to exactly one showtime and carries two mutable
// fields: the Reserved flag and the owning ReservationID. The two
// always move together: Reserved is true exactly when ReservationID
// is non-nil. A seat is never shared between two live reservations.
//
// Fields:
//  ID            – primary key identifier.
//  ShowtimeID    – showtime to which this seat belongs.
//  SeatLabel     – stable label of the seat, e.g. A1 or B12.
//  Reserved      – whether the seat is claimed by a live reservation.
//  ReservationID – reservation currently holding the seat, if any.
type Seat struct {
	ID            uint64  // seats.id
	ShowtimeID    uint64  // seats.showtime_id
	SeatLabel     string  // seats.seat_label
	Reserved      bool    // seats.reserved
	ReservationID *uint64 // seats.reservation_id (nullable)
}
