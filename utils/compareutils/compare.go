package compareutils

import (
	"golang.org/x/exp/slices"
)

// Compare two slices irrespective of elements order.
func IsEqualSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	aCopy := slices.Clone(a)
	bCopy := slices.Clone(b)
	slices.Sort(aCopy)
	slices.Sort(bCopy)
	return slices.Equal(aCopy, bCopy)
}

// Compare two dimensional slices irrespective of elements order.
func IsEqual2DSlices(a, b [][]string) bool {
	return IsEqualSlices(To1DSlice(a), To1DSlice(b))
}

// Transform two dimensional slice to one dimensional slice, joining each inner path with '>'.
func To1DSlice(a [][]string) (result []string) {
	for _, path := range a {
		joined := ""
		for i, element := range path {
			if i > 0 {
				joined += ">"
			}
			joined += element
		}
		result = append(result, joined)
	}
	return
}
