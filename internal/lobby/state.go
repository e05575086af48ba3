package lobby

import (
	"math/rand"
	"sort"

	"snake-lobby-server/internal/ids"
	"snake-lobby-server/internal/snakedomain"
)

// RefillFoodThreshold is the food count below which the running state
// spawns a fresh figure somewhere inside the boundaries. Overridable at
// startup from config.
var RefillFoodThreshold = 10

// spawnBoundaryRy is the fixed half-height of every lobby's boundary.
const spawnBoundaryRy = 6

// minSpawnBoundaryRx is the floor on the boundary half-width, independent
// of player count.
const minSpawnBoundaryRx = 6

// PrepLobbyState tracks start-vote readiness for every joined connection.
type PrepLobbyState struct {
	StartVotes map[ids.Con]bool
}

// NewPrepLobbyState builds an empty Prep state.
func NewPrepLobbyState() *PrepLobbyState {
	return &PrepLobbyState{StartVotes: make(map[ids.Con]bool)}
}

// JoinCon registers a newly joined connection with an unset vote.
func (s *PrepLobbyState) JoinCon(con ids.Con) {
	s.StartVotes[con] = false
}

// RemoveCon drops a connection's vote entry.
func (s *PrepLobbyState) RemoveCon(con ids.Con) {
	delete(s.StartVotes, con)
}

// VoteStart records con's readiness vote. A no-op if con never joined.
func (s *PrepLobbyState) VoteStart(con ids.Con, vote bool) {
	if _, ok := s.StartVotes[con]; ok {
		s.StartVotes[con] = vote
	}
}

// AllVotedToStart reports whether every joined connection has voted yes.
func (s *PrepLobbyState) AllVotedToStart() bool {
	if len(s.StartVotes) == 0 {
		return false
	}
	for _, v := range s.StartVotes {
		if !v {
			return false
		}
	}
	return true
}

// sortedCons returns every con with a start vote, ascending — used to make
// spawn placement and per-tick simulation order deterministic.
func (s *PrepLobbyState) sortedCons() []ids.Con {
	cons := make([]ids.Con, 0, len(s.StartVotes))
	for c := range s.StartVotes {
		cons = append(cons, c)
	}
	sort.Slice(cons, func(i, j int) bool { return cons[i] < cons[j] })
	return cons
}

// RunningLobbyState is the live simulation: one snake per connection still
// alive, the shared food set, the boundary rectangle, and a monotonic tick
// counter.
type RunningLobbyState struct {
	Snakes     map[ids.Con]snakedomain.Snake
	Foods      snakedomain.Foods
	Boundaries snakedomain.Boundaries
	Counter    uint32
	Cons       map[ids.Con]struct{}
}

// ToRunning materialises a RunningLobbyState from a Prep state: one snake
// per connection, spawned in a symmetric row with one empty column between
// neighbors, all facing Up.
func (s *PrepLobbyState) ToRunning() *RunningLobbyState {
	cons := s.sortedCons()

	cons2 := make(map[ids.Con]struct{}, len(cons))
	for _, c := range cons {
		cons2[c] = struct{}{}
	}

	snakes := make(map[ids.Con]snakedomain.Snake, len(cons))
	for i, con := range cons {
		var xOffset int
		if i%2 == 0 {
			xOffset = -i
		} else {
			xOffset = i + 1
		}
		yOffset := 3

		origin := snakedomain.Position{X: xOffset, Y: yOffset}
		snakes[con] = snakedomain.NewSnake(origin, snakedomain.Up, 3)
	}

	// ensure enough horizontal space for placements:
	// 1 => 2, 2 => 4, 3 => 4, 4 => 6, 5 => 6, ...
	n := len(cons)
	minXSpaceRadius := n + 2 - (n % 2)
	rx := minSpawnBoundaryRx
	if minXSpaceRadius > rx {
		rx = minXSpaceRadius
	}

	boundaries := snakedomain.FromRadius(snakedomain.Position{X: 0, Y: 0}, rx, spawnBoundaryRy)

	return &RunningLobbyState{
		Snakes:     snakes,
		Foods:      snakedomain.NewFoods(),
		Boundaries: boundaries,
		Counter:    0,
		Cons:       cons2,
	}
}

// Advance runs one simulation tick: every live snake moves once, in
// ascending-Con order for determinism; any snake that dies leaves a food
// trace and is removed. The food set is topped up afterward if it has
// fallen below RefillFoodThreshold.
//
// Every snake is checked against a single snapshot of the pre-tick
// positions, taken once before the pass — not against whatever its
// neighbors have already become this same tick. Rebuilding `others` from
// the live map mid-loop would let a higher-Con snake collide with (or
// slide past) a lower-Con snake's already-advanced position instead of
// the one it actually shared the tick with.
func (s *RunningLobbyState) Advance() {
	s.Counter++

	cons := make([]ids.Con, 0, len(s.Snakes))
	for c := range s.Snakes {
		cons = append(cons, c)
	}
	sort.Slice(cons, func(i, j int) bool { return cons[i] < cons[j] })

	snapshot := make(map[ids.Con]snakedomain.Snake, len(s.Snakes))
	for con, snake := range s.Snakes {
		snapshot[con] = snake
	}

	var dead []ids.Con
	for i, con := range cons {
		snake := s.Snakes[con]

		others := make([]snakedomain.Snake, 0, len(cons)-1)
		for j, oc := range cons {
			if j == i {
				continue
			}
			others = append(others, snapshot[oc])
		}

		result := snake.Advance(s.Foods, others, s.Boundaries)
		s.Snakes[con] = snake

		switch result {
		case snakedomain.Success:
		case snakedomain.BitYaSelf, snakedomain.BitSomeone, snakedomain.OutOfBounds:
			dead = append(dead, con)
			snakedomain.LeaveFoodTrace(snake, s.Foods)
		}
	}

	for _, con := range dead {
		delete(s.Snakes, con)
	}

	s.refillFoods()
}

// refillFoods drops a random figure somewhere inside the boundaries
// whenever the food count has fallen below the threshold. Figure cells
// landing outside the strict interior (on the outer ring or past it) are
// skipped rather than placed.
func (s *RunningLobbyState) refillFoods() {
	if s.Foods.Count() >= RefillFoodThreshold {
		return
	}

	figure := snakedomain.Figures[rand.Intn(len(snakedomain.Figures))]

	xSpan := s.Boundaries.Max.X - figure.XDim() - s.Boundaries.Min.X
	ySpan := s.Boundaries.Max.Y - figure.YDim() - s.Boundaries.Min.Y
	if xSpan <= 0 || ySpan <= 0 {
		// the figure does not fit inside these boundaries at all; skip
		// this refill tick rather than panic on an empty range.
		return
	}

	x := s.Boundaries.Min.X + rand.Intn(xSpan)
	y := s.Boundaries.Min.Y + rand.Intn(ySpan)

	for _, cell := range figure.Cells() {
		pos := snakedomain.Position{X: x + cell.X, Y: y + cell.Y}
		if s.Boundaries.Relation(pos).IsInside() {
			s.Foods.Insert(pos)
		}
	}
}

// SetConDirection steers con's snake, if it is still alive. A no-op for a
// con with no live snake (a ghost player, or one not in this lobby).
func (s *RunningLobbyState) SetConDirection(con ids.Con, dir snakedomain.Direction) {
	if snake, ok := s.Snakes[con]; ok {
		snake.SetDirection(dir)
		s.Snakes[con] = snake
	}
}

// RemoveCon removes con's snake (leaving a food trace) and drops it from
// the player set.
func (s *RunningLobbyState) RemoveCon(con ids.Con) {
	if snake, ok := s.Snakes[con]; ok {
		snakedomain.LeaveFoodTrace(snake, s.Foods)
	}
	delete(s.Cons, con)
	delete(s.Snakes, con)
}
