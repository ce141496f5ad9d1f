package app

import (
	"sort"

	"quiz-session-service/internal/domain"
)

// rankIndividuals orders participants by score, highest first. Participants must be in join order;
// equal scores keep that order.
func rankIndividuals(participants []domain.Participant, names map[int64]string) []domain.IndividualResult {
	results := make([]domain.IndividualResult, 0, len(participants))
	for _, p := range participants {
		results = append(results, domain.IndividualResult{
			UserID:     p.UserID,
			Username:   names[p.UserID],
			TeamNumber: p.TeamNumber,
			Score:      p.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// rankTeams sums scores per team. Every team in [1, numTeams] is reported, empty ones with a total
// of 0; equal totals are ordered by team number.
func rankTeams(numTeams int, participants []domain.Participant, names map[int64]string) []domain.TeamResult {
	if numTeams <= 1 {
		return []domain.TeamResult{}
	}
	teams := make([]domain.TeamResult, numTeams)
	for i := range teams {
		teams[i] = domain.TeamResult{TeamNumber: i + 1, Members: []string{}}
	}
	for _, p := range participants {
		if p.TeamNumber == nil || *p.TeamNumber < 1 || *p.TeamNumber > numTeams {
			continue
		}
		team := &teams[*p.TeamNumber-1]
		team.TotalScore += p.Score
		team.MemberCount++
		team.Members = append(team.Members, names[p.UserID])
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].TotalScore > teams[j].TotalScore
	})
	for i := range teams {
		teams[i].Rank = i + 1
	}
	return teams
}
