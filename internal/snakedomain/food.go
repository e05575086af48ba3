package snakedomain

import "encoding/json"

// Food is a single collectible position.
type Food struct {
	Pos Position
}

// Foods is a set of food positions, keyed by position for O(1) membership
// and removal.
type Foods map[Position]struct{}

// NewFoods creates an empty food set.
func NewFoods() Foods {
	return make(Foods)
}

// Insert adds a food cell.
func (f Foods) Insert(pos Position) {
	f[pos] = struct{}{}
}

// Remove deletes a food cell, if present.
func (f Foods) Remove(pos Position) {
	delete(f, pos)
}

// Contains reports whether pos currently holds food.
func (f Foods) Contains(pos Position) bool {
	_, ok := f[pos]
	return ok
}

// Count returns the number of food cells.
func (f Foods) Count() int {
	return len(f)
}

// Positions returns every food cell, order unspecified.
func (f Foods) Positions() []Position {
	out := make([]Position, 0, len(f))
	for p := range f {
		out = append(out, p)
	}
	return out
}

// Extend adds every given position as food (used by food-trace on death).
func (f Foods) Extend(positions []Position) {
	for _, p := range positions {
		f.Insert(p)
	}
}

// MarshalJSON encodes the set as a flat array of positions — a struct-keyed
// map cannot serialize as a JSON object.
func (f Foods) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Positions())
}

// UnmarshalJSON decodes a flat array of positions back into the set.
func (f *Foods) UnmarshalJSON(data []byte) error {
	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return err
	}
	out := NewFoods()
	out.Extend(positions)
	*f = out
	return nil
}
