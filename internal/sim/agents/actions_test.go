package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func composed(t *testing.T, multi bool) *Agent {
	t.Helper()
	a := NewBasicMobile("0", multi, Loc{})
	require.NoError(t, a.RegisterComponents([]Component{
		scalar("Build", 2),
		grouped("Trade", SubAction{Name: "buy", N: 3}),
	}))
	return a
}

func TestActionAccessors_BeforeRegistration(t *testing.T) {
	a := NewBasicMobile("0", false, Loc{})
	_, err := a.ActionSpaces()
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = a.SingleActionMap()
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = a.ParseAction([]int{0})
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = a.NoOpAction()
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestActionSpaces(t *testing.T) {
	spaces, err := composed(t, true).ActionSpaces()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, spaces)

	spaces, err = composed(t, false).ActionSpaces()
	require.NoError(t, err)
	assert.Equal(t, []int{6}, spaces)
}

func TestSingleActionMap(t *testing.T) {
	m, err := composed(t, false).SingleActionMap()
	require.NoError(t, err)
	assert.Equal(t, []FlatAction{
		{Index: 1, Name: "Build", Choice: 1},
		{Index: 2, Name: "Build", Choice: 2},
		{Index: 3, Name: "Trade.buy", Choice: 1},
		{Index: 4, Name: "Trade.buy", Choice: 2},
		{Index: 5, Name: "Trade.buy", Choice: 3},
	}, m)
}

func TestParseAction_Single(t *testing.T) {
	a := composed(t, false)

	got, err := a.ParseAction([]int{0})
	require.NoError(t, err)
	assert.Equal(t, []HeadChoice{{Name: "Build"}, {Name: "Trade.buy"}}, got)

	got, err = a.ParseAction([]int{4})
	require.NoError(t, err)
	assert.Equal(t, []HeadChoice{{Name: "Build"}, {Name: "Trade.buy", Choice: 2}}, got)

	got, err = a.ParseAction([]int{2})
	require.NoError(t, err)
	assert.Equal(t, []HeadChoice{{Name: "Build", Choice: 2}, {Name: "Trade.buy"}}, got)

	for _, bad := range [][]int{{6}, {-1}, {1, 2}, nil} {
		_, err := a.ParseAction(bad)
		assert.ErrorIs(t, err, ErrBadAction, "raw %v", bad)
	}
}

func TestParseAction_Multi(t *testing.T) {
	a := composed(t, true)

	got, err := a.ParseAction([]int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []HeadChoice{{Name: "Build", Choice: 2}, {Name: "Trade.buy", Choice: 3}}, got)

	for _, bad := range [][]int{{3, 0}, {0, 4}, {0}, {0, 0, 0}, {-1, 0}} {
		_, err := a.ParseAction(bad)
		assert.ErrorIs(t, err, ErrBadAction, "raw %v", bad)
	}
}

func TestActionCount(t *testing.T) {
	a := composed(t, true)
	n, ok := a.ActionCount("Trade.buy")
	require.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = a.ActionCount("Trade")
	assert.False(t, ok)
}
