package domain

import "time"

// CategoryExpertise records an operator's proficiency in one category.
// Levels run 1 (novice) to 5 (expert); an operator holds at most one
// record per category.
type CategoryExpertise struct {
	Category TicketCategory
	Level    int
}

// OperatorWorkload tracks an operator's current load and the metadata the
// assignment engine scores on. Counters are mutated only through the
// workload tracker so concurrent assignments stay consistent.
type OperatorWorkload struct {
	OperatorID     int64
	ActiveTickets  int
	TotalTickets   int
	Available      bool
	LastActivityAt time.Time
	Expertise      []CategoryExpertise
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExpertiseLevel returns the operator's level for a category, or 0 when
// no expertise record exists.
func (w *OperatorWorkload) ExpertiseLevel(category TicketCategory) int {
	for _, e := range w.Expertise {
		if e.Category == category {
			return e.Level
		}
	}
	return 0
}
