package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinic-session-backend/internal/model"
)

func candidate(id string, status Status) Candidate {
	available := status == StatusAvailable || status == StatusNoSmartPlug
	return Candidate{
		AssignmentID: id,
		Status:       status,
		IsAvailable:  available,
		Assignment:   model.EquipmentClinicAssignment{ID: id},
	}
}

func TestDecide(t *testing.T) {
	testCases := []struct {
		name       string
		candidates []Candidate
		wantKind   OutcomeKind
		wantBound  string
	}{
		{
			name:       "no equipment requirements",
			candidates: nil,
			wantKind:   OutcomeWithout,
		},
		{
			name:       "single available instance is auto selected",
			candidates: []Candidate{candidate("a1", StatusAvailable)},
			wantKind:   OutcomeAutoSelected,
			wantBound:  "a1",
		},
		{
			name: "occupied plus one free narrows to the free one",
			candidates: []Candidate{
				candidate("a1", StatusOccupied),
				candidate("a2", StatusAvailable),
			},
			wantKind:  OutcomeAutoSelected,
			wantBound: "a2",
		},
		{
			name: "plugless instance counts as available",
			candidates: []Candidate{
				candidate("a1", StatusOccupied),
				candidate("a2", StatusNoSmartPlug),
			},
			wantKind:  OutcomeAutoSelected,
			wantBound: "a2",
		},
		{
			name: "two available instances need the caller to choose",
			candidates: []Candidate{
				candidate("a1", StatusAvailable),
				candidate("a2", StatusNoSmartPlug),
			},
			wantKind: OutcomeRequiresSelection,
		},
		{
			name: "everything busy or unreachable",
			candidates: []Candidate{
				candidate("a1", StatusOccupied),
				candidate("a2", StatusOffline),
			},
			wantKind: OutcomeAllOccupied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := Decide(tc.candidates)

			assert.Equal(t, tc.wantKind, outcome.Kind)
			if tc.wantBound != "" {
				assert.True(t, outcome.Binds())
				assert.Equal(t, tc.wantBound, outcome.Assignment.ID)
			} else {
				assert.False(t, outcome.Binds())
			}
		})
	}
}

func TestOutcomeMutates(t *testing.T) {
	assert.True(t, Without().Mutates())
	assert.True(t, Explicit(&model.EquipmentClinicAssignment{ID: "a1"}).Mutates())
	assert.True(t, Outcome{Kind: OutcomeAutoSelected}.Mutates())
	assert.False(t, Outcome{Kind: OutcomeRequiresSelection}.Mutates())
	assert.False(t, Outcome{Kind: OutcomeAllOccupied}.Mutates())
}

func TestDecideDoesNotMutateInput(t *testing.T) {
	candidates := []Candidate{
		candidate("a1", StatusOccupied),
		candidate("a2", StatusAvailable),
	}
	Decide(candidates)

	assert.Equal(t, "a1", candidates[0].AssignmentID)
	assert.Equal(t, StatusOccupied, candidates[0].Status)
	assert.Len(t, candidates, 2)
}
