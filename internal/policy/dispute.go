package policy

import "github.com/guidemeet/backend/internal/models"

const (
	favorProviderAt  = 4
	favorRequesterAt = -4
	maxConfidence    = 10
)

// ScoreDispute runs the additive heuristic over ev. Positive scores favor
// the guide. The result depends on ev alone.
func ScoreDispute(ev models.DisputeEvidence) models.DisputeReport {
	factors := make([]models.ScoreFactor, 0, 5)
	add := func(name string, points int) {
		factors = append(factors, models.ScoreFactor{Name: name, Points: points})
	}

	guide := ev.Guide
	switch {
	case guide.Completed > 10 && guide.Incidents() == 0:
		add("guide_established_clean_record", 5)
	case guide.Completed > 5:
		add("guide_experienced", 2)
	}
	if guide.Incidents() > 2 {
		add("guide_repeat_incidents", -5)
	}
	if ev.Traveler.Completed == 0 {
		add("traveler_new_account", 1)
	}
	if ev.Traveler.Incidents() > 1 {
		add("traveler_repeat_incidents", 4)
	}
	if ev.MeetingDayMessages > 0 {
		add("messages_on_meeting_day", 2)
	}

	score := 0
	for _, f := range factors {
		score += f.Points
	}

	return models.DisputeReport{
		BookingID:       ev.BookingID,
		RawScore:        score,
		ConfidenceScore: clamp(score, -maxConfidence, maxConfidence),
		Recommendation:  recommend(score),
		Factors:         factors,
		Evidence:        ev,
	}
}

func recommend(score int) string {
	switch {
	case score >= favorProviderAt:
		return models.RecommendFavorProvider
	case score <= favorRequesterAt:
		return models.RecommendFavorRequester
	default:
		return models.RecommendManualReview
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
