package utils

import "sort"

// StringSet is a set of unique strings.
type StringSet struct {
	m map[string]struct{}
}

func NewStringSet(strings ...string) *StringSet {
	res := &StringSet{
		m: map[string]struct{}{},
	}
	res.AddAll(strings...)
	return res
}

// Add adds a string to the set. If string is already in the set, it has no effect.
func (s *StringSet) Add(str string) {
	s.m[str] = struct{}{}
}

func (s *StringSet) AddAll(strings ...string) {
	for _, str := range strings {
		s.Add(str)
	}
}

func (s *StringSet) Contains(str string) bool {
	_, ok := s.m[str]
	return ok
}

func (s *StringSet) IsEmpty() bool {
	return len(s.m) == 0
}

func (s *StringSet) TotalStrings() int {
	return len(s.m)
}

// Equals reports whether both sets hold exactly the same strings.
func (s *StringSet) Equals(other *StringSet) bool {
	if s.TotalStrings() != other.TotalStrings() {
		return false
	}
	for str := range s.m {
		if !other.Contains(str) {
			return false
		}
	}
	return true
}

// Difference returns the strings of s missing from other, sorted.
func (s *StringSet) Difference(other *StringSet) []string {
	var res []string
	for str := range s.m {
		if !other.Contains(str) {
			res = append(res, str)
		}
	}
	sort.Strings(res)
	return res
}

// ToSlice returns the strings in the set, sorted.
func (s *StringSet) ToSlice() []string {
	if s.IsEmpty() {
		return nil
	}
	res := make([]string, 0, len(s.m))
	for str := range s.m {
		res = append(res, str)
	}
	sort.Strings(res)
	return res
}
