package domain

import "strings"

// SlaTable holds the allowed working hours per priority tier.
type SlaTable struct {
	Hours map[TicketPriority]float64
	// Fallback is the tier used for unknown or missing priorities.
	Fallback TicketPriority
}

// DefaultSlaTable returns CRITICAL 4h, HIGH 8h, MEDIUM 24h, LOW 48h.
func DefaultSlaTable() SlaTable {
	return SlaTable{
		Hours: map[TicketPriority]float64{
			PriorityCritical: 4,
			PriorityHigh:     8,
			PriorityMedium:   24,
			PriorityLow:      48,
		},
		Fallback: PriorityLow,
	}
}

// Tier normalises a raw priority string to a known tier.
func (t SlaTable) Tier(priority string) TicketPriority {
	p := TicketPriority(strings.ToUpper(strings.TrimSpace(priority)))
	if _, ok := t.Hours[p]; ok {
		return p
	}
	return t.Fallback
}

// AllowedHours returns the working hours allowed for a priority.
func (t SlaTable) AllowedHours(priority string) float64 {
	return t.Hours[t.Tier(priority)]
}
