package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/deskbook/internal/domain/booking"
)

// HistoryRepo records confirmed bookings locally so the dashboard and CLI can
// list them without another round trip to the remote API.
type HistoryRepo struct{ pool *pgxpool.Pool }

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo { return &HistoryRepo{pool: pool} }

func (r *HistoryRepo) Record(ctx context.Context, b booking.Booking) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (user_id, booking_ref, space_id, day, start_hour, end_hour, price_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, b.UserID, b.BookingRef, b.SpaceID, b.Day, b.StartHour, b.EndHour, b.PriceCents).Scan(&id)
	return id, err
}

func (r *HistoryRepo) ListByUser(ctx context.Context, userID int64) ([]booking.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, booking_ref, space_id, day, start_hour, end_hour, price_cents, created_at
		FROM bookings
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		var b booking.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.BookingRef, &b.SpaceID, &b.Day,
			&b.StartHour, &b.EndHour, &b.PriceCents, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
