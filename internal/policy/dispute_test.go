package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/guidemeet/backend/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestScoreDispute(t *testing.T) {
	tests := []struct {
		name           string
		ev             models.DisputeEvidence
		raw            int
		confidence     int
		recommendation string
	}{
		{
			name: "clean veteran guide vs serial disputer",
			ev: models.DisputeEvidence{
				Guide:              models.PartyHistory{Completed: 25},
				Traveler:           models.PartyHistory{Completed: 0, Disputes: 2, NoShows: 1},
				MeetingDayMessages: 3,
			},
			raw: 12, confidence: 10, recommendation: models.RecommendFavorProvider,
		},
		{
			name: "guide with incidents",
			ev: models.DisputeEvidence{
				Guide:    models.PartyHistory{Completed: 3, Disputes: 2, NoShows: 2},
				Traveler: models.PartyHistory{Completed: 4},
			},
			raw: -5, confidence: -5, recommendation: models.RecommendFavorRequester,
		},
		{
			name: "experienced guide with some incidents",
			ev: models.DisputeEvidence{
				Guide:    models.PartyHistory{Completed: 12, NoShows: 1},
				Traveler: models.PartyHistory{Completed: 2},
			},
			raw: 2, confidence: 2, recommendation: models.RecommendManualReview,
		},
		{
			name: "nothing to go on",
			ev: models.DisputeEvidence{
				Guide:    models.PartyHistory{Completed: 1},
				Traveler: models.PartyHistory{Completed: 1},
			},
			raw: 0, confidence: 0, recommendation: models.RecommendManualReview,
		},
		{
			name: "exactly at provider threshold",
			ev: models.DisputeEvidence{
				Guide:              models.PartyHistory{Completed: 6},
				Traveler:           models.PartyHistory{Completed: 3},
				MeetingDayMessages: 1,
			},
			raw: 4, confidence: 4, recommendation: models.RecommendFavorProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ScoreDispute(tt.ev)
			assert.Equal(t, tt.raw, report.RawScore)
			assert.Equal(t, tt.confidence, report.ConfidenceScore)
			assert.Equal(t, tt.recommendation, report.Recommendation)

			sum := 0
			for _, f := range report.Factors {
				sum += f.Points
			}
			assert.Equal(t, report.RawScore, sum)
		})
	}
}

// Property: scoring is a pure function and the confidence stays in range.
func TestScoreDisputeDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	id := uuid.New()
	properties.Property("same evidence gives the same report", prop.ForAll(
		func(gc, gd, gn, tc, td, tn, msgs int) bool {
			ev := models.DisputeEvidence{
				BookingID:          id,
				Guide:              models.PartyHistory{Completed: gc, Disputes: gd, NoShows: gn},
				Traveler:           models.PartyHistory{Completed: tc, Disputes: td, NoShows: tn},
				MeetingDayMessages: msgs,
			}
			a, b := ScoreDispute(ev), ScoreDispute(ev)
			return assert.ObjectsAreEqual(a, b) &&
				a.ConfidenceScore >= -10 && a.ConfidenceScore <= 10
		},
		gen.IntRange(0, 40), gen.IntRange(0, 5), gen.IntRange(0, 5),
		gen.IntRange(0, 40), gen.IntRange(0, 5), gen.IntRange(0, 5),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
