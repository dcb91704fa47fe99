// Package groups resolves per-ticket quota constraints over disjoint groups of
// pool numbers and answers whether a partial ticket can still be completed
// into a valid k-ticket without enumerating completions.
package groups

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// Reserved group ids.
const (
	RemainderID = "remainder" // implicit group holding every unclaimed pool number
	FixedID     = "fixed"     // numbers that must appear on every ticket
)

// countBuffer is the group count handled without allocating in Feasible.
const countBuffer = 16

// Group is a resolved constraint: pool indices plus an inclusive quota.
type Group struct {
	ID       string
	Members  []int
	Min      int
	Max      int
	Implicit bool
}

// Set is the validated list of active groups for one pool and ticket size.
// It is immutable and safe for concurrent use.
type Set struct {
	k        int
	groups   []Group
	owner    []int
	explicit int
	fixed    []int
}

// ResolveFixed is Resolve with a set of fixed numbers that every ticket must
// hold. The fixed numbers form a leading group with min = max = their count,
// so they take precedence over any caller group that also lists them.
func ResolveFixed(pool model.Pool, k int, constraints []model.GroupConstraint, fixed []int) (*Set, error) {
	if len(fixed) == 0 {
		return Resolve(pool, k, constraints)
	}
	idx, dropped := pool.Indices(fixed)
	if dropped > 0 {
		return nil, model.Errorf("groups.resolve_fixed", model.ErrInvalidParameters,
			"%d fixed number(s) are not in the pool", dropped)
	}
	all := make([]model.GroupConstraint, 0, len(constraints)+1)
	all = append(all, model.GroupConstraint{
		ID:      FixedID,
		Numbers: pool.Values(idx),
		Min:     len(idx),
		Max:     len(idx),
	})
	all = append(all, constraints...)
	s, err := Resolve(pool, k, all)
	if err != nil {
		return nil, err
	}
	s.fixed = idx
	return s, nil
}

// Resolve intersects each constraint with the pool, gives every number to the
// first group that claims it, and appends the remainder group. It rejects
// configurations that no k-ticket can satisfy.
func Resolve(pool model.Pool, k int, constraints []model.GroupConstraint) (*Set, error) {
	const op = "groups.resolve"
	s := &Set{k: k, owner: make([]int, len(pool))}
	for i := range s.owner {
		s.owner[i] = -1
	}

	var short []string
	for ci, c := range constraints {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = fmt.Sprintf("group-%d", ci+1)
		}
		if c.Min < 0 || c.Max < c.Min {
			return nil, model.Errorf(op, model.ErrInvalidParameters,
				"group %q: need 0 <= min <= max, got min=%d max=%d", id, c.Min, c.Max)
		}
		g := Group{ID: id, Min: c.Min, Max: c.Max}
		for _, v := range c.Numbers {
			x := pool.IndexOf(v)
			if x < 0 || s.owner[x] >= 0 {
				continue
			}
			s.owner[x] = len(s.groups)
			g.Members = append(g.Members, x)
		}
		slices.Sort(g.Members)
		if g.Max > len(g.Members) {
			g.Max = len(g.Members)
		}
		if g.Min > len(g.Members) {
			short = append(short, fmt.Sprintf("%s (min %d, %d available)", id, g.Min, len(g.Members)))
		}
		s.groups = append(s.groups, g)
	}
	if len(short) > 0 {
		return nil, model.Errorf(op, model.ErrInfeasibleConstraints,
			"group minimum exceeds available numbers: %s", strings.Join(short, ", "))
	}
	s.explicit = len(s.groups)

	rest := Group{ID: RemainderID, Implicit: true}
	for x, o := range s.owner {
		if o < 0 {
			s.owner[x] = len(s.groups)
			rest.Members = append(rest.Members, x)
		}
	}
	if len(rest.Members) > 0 {
		rest.Max = len(rest.Members)
		s.groups = append(s.groups, rest)
	}

	sumMin, sumMax := 0, 0
	for _, g := range s.groups {
		sumMin += g.Min
		sumMax += g.Max
	}
	if sumMin > k {
		return nil, model.Errorf(op, model.ErrInfeasibleConstraints,
			"sum of group minimums %d exceeds ticket size %d (%s)", sumMin, k, s.describe(func(g Group) bool { return g.Min > 0 }))
	}
	if sumMax < k {
		return nil, model.Errorf(op, model.ErrInfeasibleConstraints,
			"sum of group maximums %d is below ticket size %d (%s)", sumMax, k, s.describe(func(g Group) bool { return true }))
	}
	return s, nil
}

// K returns the ticket size the set was resolved for.
func (s *Set) K() int { return s.k }

// Groups returns the active groups, remainder last.
func (s *Set) Groups() []Group { return s.groups }

// Constrained reports whether any caller-defined group is active.
func (s *Set) Constrained() bool { return s.explicit > 0 }

// Fixed returns the sorted pool indices every ticket must contain.
func (s *Set) Fixed() []int { return s.fixed }

// Owner returns the position in Groups of the group holding pool index x.
func (s *Set) Owner(x int) int { return s.owner[x] }

// Feasible reports whether the distinct pool indices in partial can still be
// extended to some k-ticket that meets every quota.
func (s *Set) Feasible(partial []int) bool {
	var buf [countBuffer]int
	counts := buf[:]
	if len(s.groups) > countBuffer {
		counts = make([]int, len(s.groups))
	}
	for _, x := range partial {
		counts[s.owner[x]]++
	}
	required, slack := 0, 0
	for i, g := range s.groups {
		c := counts[i]
		if c > g.Max {
			return false
		}
		if c < g.Min {
			required += g.Min - c
			slack += g.Max - g.Min
		} else {
			slack += g.Max - c
		}
	}
	size := len(partial)
	return size+required <= s.k && s.k-size-required <= slack
}

// Satisfied reports whether ticket is a complete k-ticket meeting every quota.
func (s *Set) Satisfied(ticket []int) bool {
	if len(ticket) != s.k {
		return false
	}
	var buf [countBuffer]int
	counts := buf[:]
	if len(s.groups) > countBuffer {
		counts = make([]int, len(s.groups))
	}
	for _, x := range ticket {
		counts[s.owner[x]]++
	}
	for i, g := range s.groups {
		if counts[i] < g.Min || counts[i] > g.Max {
			return false
		}
	}
	return true
}

func (s *Set) describe(keep func(Group) bool) string {
	var parts []string
	for _, g := range s.groups {
		if keep(g) {
			parts = append(parts, fmt.Sprintf("%s [%d,%d]", g.ID, g.Min, g.Max))
		}
	}
	return strings.Join(parts, ", ")
}

// Coverable reports whether the sorted m-subset idx is one a wheel has to
// cover: it holds every fixed index and can be extended to a valid ticket.
func (s *Set) Coverable(idx []int) bool {
	if len(s.fixed) > 0 {
		j := 0
		for _, x := range idx {
			if j < len(s.fixed) && x == s.fixed[j] {
				j++
			}
		}
		if j < len(s.fixed) {
			return false
		}
	}
	return s.Feasible(idx)
}
