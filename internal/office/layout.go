package office

import (
	"fmt"
	"strings"
)

const (
	canvasWidth  = 800
	canvasHeight = 600
	armWidth     = 20

	receptionWidth  = 80
	receptionHeight = 60
)

// Generator builds the floor plan. Rooms are placed along an L-shaped
// corridor without collision checks; occupancy only ever tests points.
type Generator struct {
	Width  int
	Height int
}

func NewGenerator() Generator {
	return Generator{Width: canvasWidth, Height: canvasHeight}
}

// Generate returns the rooms for seed. Each call builds its own stream, so
// the same seed always yields the same rooms in the same order.
//
// The corridor is the bounding box of both arms and therefore covers the
// rooms along the vertical arm. It is returned last so first-match point
// lookups prefer the specific room.
func (g Generator) Generate(seed uint64) []*Room {
	rng := NewRand(seed)
	ids := map[RoomType]int{}
	newRoom := func(t RoomType, x, y, w, h int) *Room {
		ids[t]++
		return &Room{ID: roomID(t, ids[t]), Type: t, X: x, Y: y, Width: w, Height: h}
	}

	// Horizontal and vertical arms share their top-left corner.
	cx, cy := g.Width/4, g.Height/3
	horiz, vert := g.Width/2, g.Height/2
	cw, ch := max(horiz, armWidth), max(vert, armWidth)

	count := intBetween(rng, 4, 8)
	types := make([]RoomType, 0, count)
	for range count - 3 {
		types = append(types, RoomOffice)
	}
	types = append(types, RoomMeeting, RoomKitchen, RoomRestroom)
	rng.Shuffle(len(types), func(i, j int) { types[i], types[j] = types[j], types[i] })

	var rooms []*Room
	x := cx + cw/4
	for i := 0; i < 3; i++ {
		w, h := intBetween(rng, 60, 100), intBetween(rng, 60, 80)
		rooms = append(rooms, newRoom(types[i], x, cy-h-5, w, h))
		x += w + intBetween(rng, 10, 30)
	}
	y := cy + ch/3
	for i := 3; i < 6 && i < len(types); i++ {
		w, h := intBetween(rng, 60, 100), intBetween(rng, 60, 80)
		rooms = append(rooms, newRoom(types[i], cx+cw/4, y, w, h))
		y += h + intBetween(rng, 10, 30)
	}

	rooms = append(rooms, newRoom(RoomReception, cx-receptionWidth, cy-5, receptionWidth, receptionHeight))
	rooms = append(rooms, newRoom(RoomCorridor, cx, cy, cw, ch))
	return rooms
}

func roomID(t RoomType, n int) string {
	return fmt.Sprintf("%s-%d", strings.ReplaceAll(strings.ToLower(string(t)), " ", "-"), n)
}
