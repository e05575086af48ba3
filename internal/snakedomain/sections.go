package snakedomain

// Section is a straight line segment of a snake's body: Length consecutive
// cells starting at Start and extending one step at a time along Axis.
type Section struct {
	Start  Position  `json:"start"`
	Axis   Direction `json:"axis"`
	Length int       `json:"length"`
}

// Cells enumerates every position this section occupies, head-to-tail order.
func (s Section) Cells() []Position {
	cells := make([]Position, s.Length)
	cur := s.Start
	for i := 0; i < s.Length; i++ {
		cells[i] = cur
		cur = s.Axis.Shift(cur)
	}
	return cells
}

// Sections is a snake's body: an ordered list of runs, head first.
type Sections []Section

// FromDirections builds a snake body as a polyline starting at origin, one
// cell per direction. Each direction except the last extends the body by
// one further cell along its inverse, so the tail grows away from the
// direction the snake is currently facing; the last direction adds no
// cell. Consecutive cells that continue the same axis are compacted into a
// single Section.
func FromDirections(origin Position, directions []Direction) Sections {
	if len(directions) == 0 {
		return nil
	}

	vertices := make([]Position, len(directions))
	vertices[0] = origin
	for i := 1; i < len(directions); i++ {
		step := directions[i-1].Opposite()
		vertices[i] = step.Shift(vertices[i-1])
	}

	var sections Sections
	for i := 1; i < len(vertices); i++ {
		axis := axisBetween(vertices[i-1], vertices[i])
		if n := len(sections); n > 0 && sections[n-1].Axis == axis {
			sections[n-1].Length++
			continue
		}
		sections = append(sections, Section{Start: vertices[i-1], Axis: axis, Length: 2})
	}
	if len(sections) == 0 {
		// a single-vertex body (len(directions) == 1)
		sections = Sections{{Start: origin, Axis: Down, Length: 1}}
	}
	return sections
}

// axisBetween returns the direction that steps from a to b (assumed adjacent).
func axisBetween(a, b Position) Direction {
	switch {
	case b.X == a.X && b.Y == a.Y-1:
		return Up
	case b.X == a.X && b.Y == a.Y+1:
		return Down
	case b.X == a.X-1 && b.Y == a.Y:
		return Left
	default:
		return Right
	}
}

// Head returns the first cell of the first section — the snake's head.
func (ss Sections) Head() Position {
	if len(ss) == 0 {
		return Position{}
	}
	return ss[0].Start
}

// IterVertices yields every cell occupied by the body, head first.
func (ss Sections) IterVertices() []Position {
	var out []Position
	for _, s := range ss {
		out = append(out, s.Cells()...)
	}
	return out
}

// Len returns the total cell count across all sections.
func (ss Sections) Len() int {
	n := 0
	for _, s := range ss {
		n += s.Length
	}
	return n
}

// Prepend grows the body by inserting newHead in front, as a unit section of
// its own. No merging with the following section is attempted, here or in
// Snake.Advance, so every move adds one section at the front.
func (ss Sections) Prepend(newHead Position) Sections {
	out := make(Sections, 0, len(ss)+1)
	out = append(out, Section{Start: newHead, Axis: axisBetween(newHead, ss.Head()), Length: 1})
	out = append(out, ss...)
	return out
}

// DropTail removes the last occupied cell from the body, shrinking the final
// section (or dropping it entirely if it was a single cell).
func (ss Sections) DropTail() Sections {
	if len(ss) == 0 {
		return ss
	}
	last := &ss[len(ss)-1]
	if last.Length > 1 {
		out := append(Sections{}, ss...)
		out[len(out)-1].Length--
		return out
	}
	return ss[:len(ss)-1]
}

// TailTip returns the final occupied cell (the one that vacates this tick
// unless the snake eats).
func (ss Sections) TailTip() Position {
	if len(ss) == 0 {
		return Position{}
	}
	last := ss[len(ss)-1]
	cells := last.Cells()
	return cells[len(cells)-1]
}
