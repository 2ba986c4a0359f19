package domain

import "strings"

// Actor is the identity and role snapshot of the person making a request.
// It is resolved from the database on every request and passed explicitly
// to services.
type Actor struct {
	PersonID      uint   `json:"person_id"`
	Name          string `json:"name"`
	DepartmentID  uint   `json:"department_id"`
	HasDepartment bool   `json:"has_department"`
	Rank          string `json:"rank"`
	Title         string `json:"title"`
	IsDirector    bool   `json:"is_director"`
	IsTopBoss     bool   `json:"is_top_boss"`
}

// IsBaseRank reports whether the actor holds the lowest rank. An empty rank
// counts as base.
func (a Actor) IsBaseRank() bool {
	r := strings.TrimSpace(a.Rank)
	return r == "" || strings.EqualFold(r, RankBase)
}

// IsLeadership reports whether the actor's rank is one of LeadershipRanks.
func (a Actor) IsLeadership() bool {
	for _, r := range LeadershipRanks {
		if strings.EqualFold(strings.TrimSpace(a.Rank), r) {
			return true
		}
	}
	return false
}

// HeadOf reports whether the actor leads department deptID.
func (a Actor) HeadOf(deptID uint) bool {
	return a.HasDepartment && a.DepartmentID == deptID && a.IsLeadership()
}

// CanEdit reports edit and derive permission on a commitment owned by
// deptID: same department, and either above base rank or head of it.
func (a Actor) CanEdit(deptID uint) bool {
	if !a.HasDepartment || a.DepartmentID != deptID {
		return false
	}
	return !a.IsBaseRank() || a.HeadOf(deptID)
}

// CanManageLifecycle reports whether the actor may archive, delete,
// restore or purge commitments within their scope.
func (a Actor) CanManageLifecycle() bool {
	return !a.IsBaseRank() || a.IsDirector || a.IsTopBoss
}
