package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCents_Linear(t *testing.T) {
	p := Pricer{HourlyRateCents: 1500}

	assert.Equal(t, int64(0), p.PriceCents(nil))
	assert.Equal(t, int64(0), p.PriceCents([]int{}))
	assert.Equal(t, int64(1500), p.PriceCents([]int{3}))
	assert.Equal(t, int64(6000), p.PriceCents([]int{2, 3, 4, 5}))
}

func TestPriceCents_FollowsSelection(t *testing.T) {
	p := Pricer{HourlyRateCents: 1500}
	c := controllerOn(t, allAvailable(t))

	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(5))
	assert.Equal(t, int64(4*1500), p.PriceCents(c.Selected()))

	require.NoError(t, c.Click(2)) // deselect all
	assert.Equal(t, int64(0), p.PriceCents(c.Selected()))
}
