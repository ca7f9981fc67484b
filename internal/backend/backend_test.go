package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/ddp"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

func smallConfig(backend string) *config.Config {
	c := config.Default()
	c.Hardware = config.Hardware{Width: 8, Height: 4, Chain: 2, Parallel: 3}
	c.Output.Backend = backend
	return c
}

func TestOpenSimUsesFullCanvas(t *testing.T) {
	s, err := Open(smallConfig(config.BackendSim), Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &led.Sim{}, s)
	assert.Equal(t, 16, s.Width())
	assert.Equal(t, 12, s.Height())
}

func TestOpenDDP(t *testing.T) {
	c := smallConfig(config.BackendDDP)
	c.Network.FPPHost = "127.0.0.1"
	s, err := Open(c, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &ddp.Surface{}, s)
}

func TestOpenColorLightFailureIsNotDowngraded(t *testing.T) {
	c := smallConfig(config.BackendColorLight)
	c.Network.ColorLightInterface = "ledpanels-nope0"
	s, err := Open(c, Options{})
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestOpenRejectsInvalidSelection(t *testing.T) {
	_, err := Open(smallConfig("rgbmatrix"), Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)

	c := smallConfig("")
	c.Network.FPPEnabled = true
	c.Network.ColorLightEnabled = true
	_, err = Open(c, Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
