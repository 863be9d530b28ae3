package slot

// Pricer derives the cost of a selection. Selections are whole hours, so the
// price is always an integer multiple of the hourly rate; amounts are kept in
// cents to stay out of floating point.
type Pricer struct {
	HourlyRateCents int64
}

// PriceCents is len(ids) times the hourly rate. An empty selection costs zero.
func (p Pricer) PriceCents(ids []int) int64 {
	return int64(len(ids)) * p.HourlyRateCents
}
