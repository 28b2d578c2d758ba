package carding

import (
	"github.com/mkelleher/storefront-sentinel/internal/domain/detection"
	"github.com/mkelleher/storefront-sentinel/internal/domain/payment"
)

// AggregateByAddress groups a bounded batch of payment events into per-address
// tallies. Events with an empty address are excluded from every bucket and
// reported through the excluded count; the sum of bucket totals plus excluded
// always equals len(events). The declined test is an exact match against
// payment.StatusDeclined.
func AggregateByAddress(events []payment.Event) (map[string]detection.AddressStats, int) {
	stats := make(map[string]detection.AddressStats)
	excluded := 0

	for _, ev := range events {
		if ev.Address == "" {
			excluded++
			continue
		}

		s := stats[ev.Address]
		s.Address = ev.Address
		s.Total++
		if ev.Status == payment.StatusDeclined {
			s.Declined++
		}
		stats[ev.Address] = s
	}

	return stats, excluded
}
