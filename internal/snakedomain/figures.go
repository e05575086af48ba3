package snakedomain

// Figure is a fixed 2D boolean template describing a food cluster layout.
// The set of figures is closed and enumerable.
type Figure int

const (
	Dot Figure = iota
	LineH
	LineV
	Block
	Plus
	figureCount
)

// Figures lists every known figure, for random selection during refill.
var Figures = []Figure{Dot, LineH, LineV, Block, Plus}

// cellGrid returns the figure's template: true marks a food cell.
func (f Figure) cellGrid() [][]bool {
	switch f {
	case Dot:
		return [][]bool{{true}}
	case LineH:
		return [][]bool{{true, true, true}}
	case LineV:
		return [][]bool{{true}, {true}, {true}}
	case Block:
		return [][]bool{
			{true, true},
			{true, true},
		}
	case Plus:
		return [][]bool{
			{false, true, false},
			{true, true, true},
			{false, true, false},
		}
	default:
		return [][]bool{{true}}
	}
}

// XDim is the figure's width in cells.
func (f Figure) XDim() int {
	grid := f.cellGrid()
	if len(grid) == 0 {
		return 0
	}
	return len(grid[0])
}

// YDim is the figure's height in cells.
func (f Figure) YDim() int {
	return len(f.cellGrid())
}

// Cells returns the relative (dx, dy) offsets, from the figure's top-left
// corner, of every food cell in the template.
func (f Figure) Cells() []Position {
	grid := f.cellGrid()
	var out []Position
	for y, row := range grid {
		for x, isFood := range row {
			if isFood {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}
