package favorites

import "golang.org/x/exp/slices"

// Set is a user's favorite supplier ids in the order they were added.
type Set struct {
	ids []string
}

func NewSet(ids []string) *Set {
	s := &Set{}
	for _, id := range ids {
		if !s.Contains(id) {
			s.ids = append(s.ids, id)
		}
	}
	return s
}

// Toggle flips membership of id and returns whether it is now a favorite.
func (s *Set) Toggle(id string) bool {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *Set) Contains(id string) bool {
	return slices.Contains(s.ids, id)
}

func (s *Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *Set) Len() int {
	return len(s.ids)
}
