package office

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator()
	first := g.Generate(42)
	second := g.Generate(42)
	require.Equal(t, first, second)
	require.NotEqual(t, first, g.Generate(43))
}

func TestGenerateShape(t *testing.T) {
	g := NewGenerator()
	for seed := uint64(0); seed < 100; seed++ {
		rooms := g.Generate(seed)

		corridor := rooms[len(rooms)-1]
		require.Equal(t, RoomCorridor, corridor.Type)
		assert.Equal(t, Room{ID: "corridor-1", Type: RoomCorridor, X: 200, Y: 200, Width: 400, Height: 300}, *corridor)

		reception := rooms[len(rooms)-2]
		require.Equal(t, RoomReception, reception.Type)
		assert.Equal(t, 120, reception.X)
		assert.Equal(t, 195, reception.Y)
		assert.Equal(t, 80, reception.Width)
		assert.Equal(t, 60, reception.Height)

		placed := rooms[:len(rooms)-2]
		require.GreaterOrEqual(t, len(placed), 4, "seed %d", seed)
		require.LessOrEqual(t, len(placed), 6, "seed %d", seed)

		ids := map[string]bool{}
		for i, r := range rooms {
			require.False(t, ids[r.ID], "duplicate id %s", r.ID)
			ids[r.ID] = true
			if i >= len(placed) {
				continue
			}
			assert.NotContains(t, []RoomType{RoomCorridor, RoomReception}, r.Type)
			assert.GreaterOrEqual(t, r.Width, 60)
			assert.LessOrEqual(t, r.Width, 100)
			assert.GreaterOrEqual(t, r.Height, 60)
			assert.LessOrEqual(t, r.Height, 80)
			if i < 3 {
				assert.Equal(t, 195, r.Y+r.Height, "horizontal arm room sits above the corridor")
			} else {
				assert.Equal(t, 300, r.X)
			}
		}
	}
}

func TestVerticalArmRoomsWinOverCorridor(t *testing.T) {
	rooms := NewGenerator().Generate(7)
	for i := 3; i < len(rooms)-2; i++ {
		r := rooms[i]
		x, y := float64(r.X+1), float64(r.Y+1)
		for _, candidate := range rooms {
			if candidate.ContainsPoint(x, y) {
				assert.Equal(t, r.ID, candidate.ID)
				break
			}
		}
	}
}
