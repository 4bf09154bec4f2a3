package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusEnded, true},
		{StatusActive, StatusEnded, true},
		{StatusActive, StatusPending, false},
		{StatusEnded, StatusActive, false},
		{StatusEnded, StatusPending, false},
		{StatusActive, StatusActive, false},
		{Status("bogus"), StatusActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParse(t *testing.T) {
	k, err := ParseKind(" Truth ")
	require.NoError(t, err)
	assert.Equal(t, KindTruth, k)

	_, err = ParseKind("maybe")
	assert.Error(t, err)

	m, err := ParseMode("SPOUSE")
	require.NoError(t, err)
	assert.Equal(t, ModeSpouse, m)

	_, err = ParseMode("")
	assert.Error(t, err)

	tier, err := ParseTier("extreme")
	require.NoError(t, err)
	assert.Equal(t, TierExtreme, tier)

	_, err = ParseTier("spicy")
	assert.Error(t, err)
}

func TestJoinedBefore(t *testing.T) {
	now := time.Now()
	a := Participant{JoinedAt: now, Seq: 1}
	b := Participant{JoinedAt: now, Seq: 2}
	c := Participant{JoinedAt: now.Add(-time.Second), Seq: 3}

	assert.True(t, a.JoinedBefore(b))
	assert.False(t, b.JoinedBefore(a))
	assert.True(t, c.JoinedBefore(a))
}

func TestRoomCloneIsDeep(t *testing.T) {
	ended := time.Now()
	r := Room{TurnOrder: []string{"a", "b"}, EndedAt: &ended}

	c := r.Clone()
	c.TurnOrder[0] = "z"
	*c.EndedAt = ended.Add(time.Hour)

	assert.Equal(t, "a", r.TurnOrder[0])
	assert.True(t, r.EndedAt.Equal(ended))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeCode(" ab12cd "))
}
