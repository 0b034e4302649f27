package office

import "slices"

type Room struct {
	ID        string
	Type      RoomType
	X, Y      int
	Width     int
	Height    int
	Occupants []string
	Events    []string
}

// ContainsPoint tests x in [X, X+Width) and y in [Y, Y+Height).
func (r *Room) ContainsPoint(x, y float64) bool {
	return x >= float64(r.X) && x < float64(r.X+r.Width) &&
		y >= float64(r.Y) && y < float64(r.Y+r.Height)
}

// AddOccupant is idempotent and sets w.CurrentRoom.
func (r *Room) AddOccupant(w *Worker) {
	if !slices.Contains(r.Occupants, w.ID) {
		r.Occupants = append(r.Occupants, w.ID)
	}
	w.CurrentRoom = r.ID
}

// RemoveOccupant is idempotent and clears w.CurrentRoom when it points here.
func (r *Room) RemoveOccupant(w *Worker) {
	if i := slices.Index(r.Occupants, w.ID); i >= 0 {
		r.Occupants = slices.Delete(r.Occupants, i, i+1)
	}
	if w.CurrentRoom == r.ID {
		w.CurrentRoom = ""
	}
}

func (r *Room) HasOccupant(id string) bool {
	return slices.Contains(r.Occupants, id)
}

// RandomInteriorPoint returns an integer point in [X+1, X+Width-1] x
// [Y+1, Y+Height-1].
func (r *Room) RandomInteriorPoint(rng Rand) (int, int) {
	return intBetween(rng, r.X+1, r.X+r.Width-1), intBetween(rng, r.Y+1, r.Y+r.Height-1)
}

// AddEvent records a disruption. Events are never removed.
func (r *Room) AddEvent(tag string) {
	r.Events = append(r.Events, tag)
}
