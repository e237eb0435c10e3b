package memory

import (
	"context"
	"math/rand"
	"time"

	"psych-assessment-service/internal/domain"
)

var fixtureTitles = []string{
	"Beck Depression Inventory (BDI-II)",
	"Minnesota Multiphasic Personality Inventory",
	"Hamilton Anxiety Rating Scale",
	"Cognitive Behavioral Assessment",
	"PTSD Checklist (PCL-5)",
	"Brief Symptom Inventory",
	"Wechsler Adult Intelligence Scale",
	"Clinical Stress Assessment",
	"Personality Disorder Questionnaire",
	"Anxiety Sensitivity Index",
	"Rorschach Inkblot Test",
	"Myers-Briggs Type Indicator",
}

var (
	fixtureStatuses = []domain.Status{domain.StatusDraft, domain.StatusActive, domain.StatusCompleted, domain.StatusArchived}
	fixtureDomains  = []string{"Anxiety", "Depression", "Stress"}
)

// FixtureRecords builds the demo catalogue. The same seed and clock always yield the same records.
func FixtureRecords(now time.Time, seed int64) []domain.AssessmentRecord {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]domain.AssessmentRecord, 0, len(fixtureTitles))
	for idx, title := range fixtureTitles {
		created := now.Add(-time.Duration(rnd.Int63n(int64(90 * 24 * time.Hour))))
		out = append(out, domain.AssessmentRecord{
			ID:          int64(idx + 1),
			Title:       title,
			Slug:        domain.Slugify(title),
			Description: "Professional psychological assessment for " + title,
			CreatedBy:   1,
			Status:      fixtureStatuses[rnd.Intn(len(fixtureStatuses))],
			Settings: domain.Settings{
				Category:             domain.Categories[idx%len(domain.Categories)],
				Domains:              append([]string{}, fixtureDomains[:rnd.Intn(len(fixtureDomains))+1]...),
				AnonymousResponses:   true,
				ScoringMethodology:   domain.ScoringLikert,
				CompletionTime:       15,
				ConfidentialityLevel: domain.ConfidentialityHigh,
				ClinicalMaxScore:     100,
				EthicalApproval:      true,
				Questions:            []domain.Question{},
			},
			ParticipantCount: rnd.Intn(500) + 10,
			CreatedAt:        created,
			UpdatedAt:        created,
		})
	}
	// the first record carries the full question set shown on the detail page
	out[0].Settings.Domains = []string{"Depression", "Mood", "Cognitive Function", "Physical Symptoms"}
	out[0].Settings.Questions = SampleQuestions()
	return out
}

// SeededAssessmentStore returns a store preloaded with FixtureRecords.
func SeededAssessmentStore(now time.Time, seed int64) *AssessmentStore {
	store := NewAssessmentStore()
	store.Seed(FixtureRecords(now, seed)...)
	return store
}

// StaticAnalytics serves one fixed reporting block for every assessment.
type StaticAnalytics struct {
	analytics domain.Analytics
}

func NewStaticAnalytics() *StaticAnalytics {
	return &StaticAnalytics{analytics: sampleAnalytics()}
}

func (a *StaticAnalytics) Analytics(_ context.Context, rec domain.AssessmentRecord) (domain.Analytics, error) {
	out := a.analytics
	out.Participants = append([]domain.Participant{}, a.analytics.Participants...)
	out.ScoreDistribution = append([]domain.ScoreBucket{}, a.analytics.ScoreDistribution...)
	out.CompletionTrend = append([]domain.TrendPoint{}, a.analytics.CompletionTrend...)
	out.DomainScores = domainScoresFor(rec.Settings.Domains, a.analytics.DomainScores)
	return out, nil
}

// domainScoresFor keeps the scores of the assessment's own domains, falling back to the full set.
func domainScoresFor(domains []string, all []domain.DomainScore) []domain.DomainScore {
	want := make(map[string]bool, len(domains))
	for _, d := range domains {
		want[d] = true
	}
	out := make([]domain.DomainScore, 0, len(all))
	for _, s := range all {
		if want[s.Domain] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append(out, all...)
	}
	return out
}

func sampleAnalytics() domain.Analytics {
	score := func(v int) *int { return &v }
	return domain.Analytics{
		CompletionRate: 78.5,
		AverageScore:   18.3,
		AverageTime:    12.5,
		Participants: []domain.Participant{
			{ID: "p1", Name: "Sarah Johnson", Email: "sarah.j@example.com", Status: domain.ParticipantCompleted, Progress: 100, LastActivity: "2024-11-05", Score: score(12)},
			{ID: "p2", Name: "Michael Chen", Email: "m.chen@example.com", Status: domain.ParticipantInProgress, Progress: 65, LastActivity: "2024-11-08"},
			{ID: "p3", Name: "Emily Rodriguez", Email: "emily.r@example.com", Status: domain.ParticipantCompleted, Progress: 100, LastActivity: "2024-11-07", Score: score(24)},
			{ID: "p4", Name: "David Kim", Email: "d.kim@example.com", Status: domain.ParticipantInvited, Progress: 0},
			{ID: "p5", Name: "Jessica Taylor", Email: "j.taylor@example.com", Status: domain.ParticipantExpired, Progress: 30, LastActivity: "2024-10-28"},
		},
		ScoreDistribution: []domain.ScoreBucket{
			{Range: "0-5", Count: 23},
			{Range: "6-10", Count: 45},
			{Range: "11-15", Count: 67},
			{Range: "16-20", Count: 54},
			{Range: "21-25", Count: 38},
			{Range: "26-30", Count: 20},
		},
		DomainScores: []domain.DomainScore{
			{Domain: "Depression", Score: 72},
			{Domain: "Mood", Score: 65},
			{Domain: "Cognitive", Score: 58},
			{Domain: "Physical", Score: 48},
			{Domain: "Social", Score: 55},
		},
		CompletionTrend: []domain.TrendPoint{
			{Label: "Week 1", Completed: 45},
			{Label: "Week 2", Completed: 78},
			{Label: "Week 3", Completed: 112},
			{Label: "Week 4", Completed: 154},
			{Label: "Week 5", Completed: 194},
		},
	}
}

// SampleQuestions is the BDI-II question set used to seed a detailed demo assessment.
func SampleQuestions() []domain.Question {
	five, seven := 5, 7
	return []domain.Question{
		{ID: "q1", Text: "Over the past two weeks, how often have you felt down, depressed, or hopeless?", Type: domain.QuestionLikert, ScalePoints: &five, ScoringWeight: 1, RiskFlag: true},
		{ID: "q2", Text: "Have you experienced significant changes in your sleep patterns?", Type: domain.QuestionMultipleChoice, Options: []string{"No changes", "Sleeping more", "Sleeping less", "Insomnia"}, ScoringWeight: 1.2},
		{ID: "q3", Text: "Rate your overall mood over the past week", Type: domain.QuestionSemanticDifferential, ScalePoints: &seven, ScoringWeight: 1},
		{ID: "q4", Text: "Please describe any additional symptoms you have experienced", Type: domain.QuestionOpenEnded, ScoringWeight: 0},
	}
}
