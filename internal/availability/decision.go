package availability

import "clinic-session-backend/internal/model"

// OutcomeKind enumerates the possible start decisions.
type OutcomeKind string

const (
	// OutcomeWithout starts the session with no equipment bound.
	OutcomeWithout OutcomeKind = "without"
	// OutcomeAutoSelected binds the single available candidate.
	OutcomeAutoSelected OutcomeKind = "auto_selected"
	// OutcomeExplicit binds the assignment the caller named.
	OutcomeExplicit OutcomeKind = "explicit"
	// OutcomeRequiresSelection defers to the caller; no state is mutated.
	OutcomeRequiresSelection OutcomeKind = "requires_selection"
	// OutcomeAllOccupied reports every candidate busy; no state is mutated.
	OutcomeAllOccupied OutcomeKind = "all_occupied"
)

// Outcome is the tagged decision produced by Decide or by an explicit caller
// override. Assignment is set for the auto_selected and explicit kinds;
// Candidates carries the classified list for the non-mutating kinds.
type Outcome struct {
	Kind       OutcomeKind
	Assignment *model.EquipmentClinicAssignment
	Candidates []Candidate
}

// Binds reports whether this outcome claims a physical equipment instance.
func (o Outcome) Binds() bool {
	return o.Assignment != nil
}

// Mutates reports whether this outcome leads into the start transaction.
func (o Outcome) Mutates() bool {
	return o.Kind == OutcomeWithout || o.Kind == OutcomeAutoSelected || o.Kind == OutcomeExplicit
}

// Without returns the outcome for a session with no equipment bound.
func Without() Outcome {
	return Outcome{Kind: OutcomeWithout}
}

// Explicit returns the outcome binding a caller-named assignment.
func Explicit(assignment *model.EquipmentClinicAssignment) Outcome {
	return Outcome{Kind: OutcomeExplicit, Assignment: assignment}
}

// Decide is the decision engine: a pure function over the classified
// candidate list.
//
//   - no candidates at all           -> without
//   - all candidates unavailable     -> all_occupied
//   - exactly one available          -> auto_selected(that one)
//   - more than one available        -> requires_selection
func Decide(candidates []Candidate) Outcome {
	if len(candidates) == 0 {
		return Without()
	}

	var available []Candidate
	for _, c := range candidates {
		if c.IsAvailable {
			available = append(available, c)
		}
	}

	switch len(available) {
	case 0:
		return Outcome{Kind: OutcomeAllOccupied, Candidates: candidates}
	case 1:
		chosen := available[0].Assignment
		return Outcome{Kind: OutcomeAutoSelected, Assignment: &chosen, Candidates: candidates}
	default:
		return Outcome{Kind: OutcomeRequiresSelection, Candidates: candidates}
	}
}
