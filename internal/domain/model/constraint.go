package model

// GroupConstraint names a subset of the pool and the inclusive range of how
// many of its numbers a single ticket may hold.
type GroupConstraint struct {
	ID      string `json:"id"`
	Numbers []int  `json:"numbers"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
}
