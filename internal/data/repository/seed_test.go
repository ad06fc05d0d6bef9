package repository

import (
	"os"
	"path/filepath"
	"testing"

	"cinema-checkout/internal/data/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
showtimes:
  - place_id: inox-mall
    screen_id: screen-2
    showtime_id: st-2002
    movie_id: mv-dune
    movie_title: Dune
    screen_name: Screen 2
    screen_type: 2D
    starts_at: "2026-11-01T21:00:00+05:30"
    prices:
      silver: 180
      Gold: 280
    rows:
      - row: A
        seats: 4
        type: silver
      - row: B
        seats: 2
        type: gold
food:
  - id: water
    name: Water
    price: 40
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Showtimes, 1)
	require.Len(t, seed.Food, 1)

	st := seed.Showtimes[0]
	assert.Equal(t, "st-2002", st.ShowtimeID)
	assert.Len(t, st.Rows, 2)

	showtime, err := st.toEntity()
	require.NoError(t, err)
	assert.Equal(t, int64(280), showtime.Prices[entity.SeatTypeGold])
	assert.Equal(t, 2026, showtime.StartsAt.Year())

	layout, err := st.layout()
	require.NoError(t, err)
	require.Len(t, layout, 6)
	assert.Equal(t, "B2", layout[5].SeatID)
	assert.Equal(t, entity.SeatTypeGold, layout[5].Type)
	assert.Equal(t, 2, layout[5].Column)
}

func TestLoadSeed_MissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSeed_RejectsUnknownSeatType(t *testing.T) {
	seed := DemoSeed()
	seed.Showtimes[0].Rows[0].Type = "recliner"

	_, err := NewMemoryRepository(seed, nopLogger())
	assert.Error(t, err)
}

func TestSeed_RejectsBadStartTime(t *testing.T) {
	seed := DemoSeed()
	seed.Showtimes[0].StartsAt = "tomorrow evening"

	_, err := seed.Showtimes[0].toEntity()
	assert.Error(t, err)
}
