package core

import "poolcore/pkg/domain"

// GenerateLayout returns a base layout in which every position of shape is a
// valid destination.
func GenerateLayout(shape domain.RackShape) domain.BaseLayout {
	return domain.BaseLayout{Shape: shape, Positions: shape.Positions()}
}

// PlateCount returns the number of plates of the given capacity needed for n
// pools. Non-positive n or capacity yields 0.
func PlateCount(n, capacity int) int {
	if n <= 0 || capacity <= 0 {
		return 0
	}
	return (n + capacity - 1) / capacity
}
