package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("%w: team must be between 1 and 2", ErrInvalidTeam)
	assert.Equal(t, KindInvalidInput, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrInvalidTeam))
	assert.Equal(t, KindPreconditionFailed, KindOf(ErrAlreadyStarted))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestParseNumTeams(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"", 1, true},
		{"3", 3, true},
		{" 2 ", 2, true},
		{"0", 1, false},
		{"-4", 1, false},
		{"two", 1, false},
		{"2.5", 1, false},
	}
	for _, tc := range cases {
		n, ok := ParseNumTeams(tc.raw)
		assert.Equal(t, tc.want, n, "raw=%q", tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
	}
}

func TestParseScoreRejectsNonFinite(t *testing.T) {
	v, err := ParseScore("42.5")
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)

	for _, raw := range []string{"", "abc", "NaN", "Inf", "-Inf"} {
		_, err := ParseScore(raw)
		assert.ErrorIs(t, err, ErrInvalidScore, "raw=%q", raw)
	}
}

func TestParseTeamNumber(t *testing.T) {
	team, err := ParseTeamNumber("")
	require.NoError(t, err)
	assert.Nil(t, team)

	team, err = ParseTeamNumber("2")
	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, 2, *team)

	_, err = ParseTeamNumber("blue")
	assert.ErrorIs(t, err, ErrInvalidTeam)
}

func TestQuestionJSONKeepsVariant(t *testing.T) {
	data := []byte(`{"id":7,"question_text":"Pick a number","type":"slider","payload":{"min_value":0,"max_value":10,"step":1,"correct_value":4}}`)
	var q Question
	require.NoError(t, json.Unmarshal(data, &q))

	slider, ok := q.Payload.(Slider)
	require.True(t, ok, "expected slider payload, got %T", q.Payload)
	assert.Equal(t, 4, slider.CorrectValue)

	out, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type":"slider"`)

	err = json.Unmarshal([]byte(`{"id":1,"type":"essay"}`), &q)
	assert.Error(t, err)
}

func TestParticipantSameTeam(t *testing.T) {
	one, two := 1, 2
	assert.True(t, Participant{}.SameTeam(nil))
	assert.False(t, Participant{}.SameTeam(&one))
	assert.True(t, Participant{TeamNumber: &one}.SameTeam(&one))
	assert.False(t, Participant{TeamNumber: &one}.SameTeam(&two))
}
