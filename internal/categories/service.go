// Package categories holds the ordered category list shared by the gate,
// the review flow and the CLI pickers. It is a presentation hint: the
// classifier may learn and output labels that are not in it.
package categories

import "strings"

// Service provides lookup over the configured category list.
type Service struct {
	names  []string
	byName map[string]int
}

// NewService creates a Service from an ordered list. Blank and repeated
// names are dropped, keeping the first occurrence.
func NewService(names []string) *Service {
	s := &Service{byName: make(map[string]int, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := s.byName[n]; dup {
			continue
		}
		s.byName[n] = len(s.names)
		s.names = append(s.names, n)
	}
	return s
}

// All returns the categories in configured order.
func (s *Service) All() []string {
	return s.names
}

// Contains reports whether name is a configured category.
func (s *Service) Contains(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Fallback returns the catch-all category, the last in the list.
func (s *Service) Fallback() string {
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}

// Unknown returns the labels from seen that are not configured, in order of
// first appearance.
func (s *Service) Unknown(seen []string) []string {
	var out []string
	dup := make(map[string]bool)
	for _, l := range seen {
		if l == "" || s.Contains(l) || dup[l] {
			continue
		}
		dup[l] = true
		out = append(out, l)
	}
	return out
}
