package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-session-service/internal/domain"
)

func team(n int) *int { return &n }

func TestRankIndividualsKeepsJoinOrderOnTies(t *testing.T) {
	participants := []domain.Participant{
		{UserID: 1, Score: 5},
		{UserID: 2, Score: 9},
		{UserID: 3, Score: 5},
	}
	names := map[int64]string{1: "a", 2: "b", 3: "c"}

	got := rankIndividuals(participants, names)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{got[0].UserID, got[1].UserID, got[2].UserID})
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
	assert.Equal(t, "b", got[0].Username)
}

func TestRankIndividualsEmpty(t *testing.T) {
	got := rankIndividuals(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRankTeams(t *testing.T) {
	participants := []domain.Participant{
		{UserID: 1, TeamNumber: team(1), Score: 4},
		{UserID: 2, TeamNumber: team(3), Score: 10},
		{UserID: 3, TeamNumber: team(1), Score: 6},
	}
	names := map[int64]string{1: "a", 2: "b", 3: "c"}

	got := rankTeams(4, participants, names)
	require.Len(t, got, 4)

	// Teams 1 and 3 tie on 10; empty teams 2 and 4 follow in number order.
	assert.Equal(t, []int{1, 3, 2, 4}, []int{got[0].TeamNumber, got[1].TeamNumber, got[2].TeamNumber, got[3].TeamNumber})
	assert.Equal(t, 10.0, got[0].TotalScore)
	assert.Equal(t, []string{"a", "c"}, got[0].Members)
	assert.Equal(t, 0, got[2].MemberCount)
	assert.Equal(t, []string{}, got[3].Members)
	assert.Equal(t, 4, got[3].Rank)
}

func TestRankTeamsIndividualMode(t *testing.T) {
	assert.Empty(t, rankTeams(1, []domain.Participant{{UserID: 1, Score: 3}}, nil))
}
