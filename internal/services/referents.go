package services

import (
	"fmt"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// ReferentPlan is the outcome of reconciling current referents with a
// desired set: the non-principal ids to remove and the ids to add as
// non-principal.
type ReferentPlan struct {
	Keep   []uint
	Remove []uint
	Add    []uint
}

// ReconcileReferents plans how to turn current into desired without touching
// principal flags. It fails with ErrResponsibleRemoval if any principal is
// missing from desired. Duplicates and zero ids in desired are ignored and
// Add keeps desired's order.
func ReconcileReferents(current []domain.CommitmentReferent, desired []uint) (ReferentPlan, error) {
	want := make(map[uint]struct{}, len(desired))
	for _, id := range desired {
		if id != 0 {
			want[id] = struct{}{}
		}
	}

	have := make(map[uint]struct{}, len(current))
	for _, r := range current {
		have[r.PersonID] = struct{}{}
		if !r.Principal {
			continue
		}
		if _, ok := want[r.PersonID]; !ok {
			return ReferentPlan{}, fmt.Errorf("person %d: %w", r.PersonID, ErrResponsibleRemoval)
		}
	}

	var plan ReferentPlan
	for _, r := range current {
		if _, ok := want[r.PersonID]; ok {
			plan.Keep = append(plan.Keep, r.PersonID)
			continue
		}
		plan.Remove = append(plan.Remove, r.PersonID)
	}
	seen := make(map[uint]struct{}, len(desired))
	for _, id := range desired {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := have[id]; !ok {
			plan.Add = append(plan.Add, id)
		}
	}
	return plan, nil
}

// ReferentLabel renders a referent for listings; the principal is marked
// with " (*)".
func ReferentLabel(name, lastName string, principal bool) string {
	label := domain.Person{Name: name, LastName: lastName}.FullName()
	if principal {
		label += " (*)"
	}
	return label
}
