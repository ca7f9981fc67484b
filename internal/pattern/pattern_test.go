package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeChuckRoast/LedPanels/internal/led"
	"github.com/MikeChuckRoast/LedPanels/internal/render"
)

func TestRowSweepLightsOneRow(t *testing.T) {
	sim, err := led.NewSim(3, 2)
	require.NoError(t, err)
	e, err := render.NewEngine(sim, 1)
	require.NoError(t, err)

	s, err := New(RowSweep, 3, 2)
	require.NoError(t, err)
	r := NewRunner(s)
	assert.Equal(t, RowSweep, r.Kind())

	ok, err := r.Step(e)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{
		255, 255, 255, 255, 255, 255, 255, 255, 255,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
	}, sim.Snapshot())

	ok, _ = r.Step(e)
	assert.True(t, ok)
	assert.Equal(t, byte(255), sim.Snapshot()[9])

	ok, _ = r.Step(e)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), sim.Frames())
}

func TestRGBChannelsAndColumns(t *testing.T) {
	sim, err := led.NewSim(2, 1)
	require.NoError(t, err)
	e, err := render.NewEngine(sim, 1)
	require.NoError(t, err)

	s, err := New(RGBChannels, 2, 1)
	require.NoError(t, err)
	require.NoError(t, NewRunner(s).Run(context.Background(), e, 0))
	assert.Equal(t, []byte{0, 0, 255, 0, 0, 255}, sim.Snapshot(), "last step is blue")
	assert.Equal(t, uint64(3), sim.Frames())

	c, err := New(ColumnSweep, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Pages())
}

func TestNewUnknownAndRegister(t *testing.T) {
	_, err := New("plane_z", 1, 1)
	assert.Error(t, err)

	reg := render.NewRegistry()
	Register(reg, 4, 4)
	assert.Equal(t, []string{"column_sweep", "rgb_channels", "row_sweep"}, reg.List())
}
