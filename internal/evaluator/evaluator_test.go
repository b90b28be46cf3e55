package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ai-hiring-go/internal/parser"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/pkg/agent"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendationForScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, models.RecommendationStrong},
		{80, models.RecommendationStrong},
		{79, models.RecommendationPotential},
		{50, models.RecommendationPotential},
		{49, models.RecommendationWeak},
		{0, models.RecommendationWeak},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendationForScore(tt.score), "score=%d", tt.score)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{`87`, 87, false},
		{`72.6`, 73, false},
		{`"64"`, 64, false},
		{`140`, 100, false},
		{`-5`, 0, false},
		{`null`, 0, true},
		{``, 0, true},
		{`"high"`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseScore(json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, "raw=%s", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%s", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%s", tt.raw)
	}
}

func TestNormalizeField(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"对象", `{"Go":" 5 years ","":"x","Rust":""}`, map[string]string{"Go": "5 years"}},
		{"字符串列表", `["Go"," Kafka ",""]`, map[string]string{"Go": "", "Kafka": ""}},
		{"技能对象列表", `[{"skill":"Go","reason":"built services"},{"skill":"SQL"}]`, map[string]string{"Go": "built services", "SQL": ""}},
		{"标题对象列表", `[{"header":"Communication","detail":"clear"}]`, map[string]string{"Communication": "clear"}},
		{"任意对象列表", `[{"Docker":"used daily"},{"K8s":"basic"}]`, map[string]string{"Docker": "used daily", "K8s": "basic"}},
		{"null", `null`, map[string]string{}},
		{"空", ``, map[string]string{}},
		{"非法类型", `42`, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeField(json.RawMessage(tt.raw)))
		})
	}
}

func TestJobContextString(t *testing.T) {
	assert.Equal(t, "General Software Engineering Role", JobContext{}.String())
	assert.Equal(t, "Role: Backend Engineer\n\nDescription: Go and MySQL", JobContext{Title: "Backend Engineer", Description: "Go and MySQL"}.String())
	assert.Equal(t, "Role: SRE\n\nDescription: No description provided.", JobContext{Title: "SRE"}.String())
}

func TestResumeScorer_Score(t *testing.T) {
	mock := agent.NewMockChatClient("```json\n"+`{
  "score": 91.2,
  "recommendation": "bogus",
  "matched_skills": {"Go": "5 years"},
  "missing_skills": ["Kubernetes"],
  "strengths": [{"strength": "Ownership", "description": "led migrations"}],
  "weaknesses": {},
  "summary": "  Strong backend profile.  "
}`+"\n```", nil)
	scorer := NewResumeScorer(mock)

	res, err := scorer.Score(context.Background(), JobContext{Title: "Backend Engineer", Description: "Go services"}, "Go developer with five years of experience")
	require.NoError(t, err)
	assert.Equal(t, 91, res.Score)
	assert.Equal(t, models.RecommendationStrong, res.Recommendation, "非法推荐结论按分数推导")
	assert.Equal(t, map[string]string{"Go": "5 years"}, res.MatchedSkills)
	assert.Equal(t, map[string]string{"Kubernetes": ""}, res.MissingSkills)
	assert.Equal(t, map[string]string{"Ownership": "led migrations"}, res.Strengths)
	assert.Empty(t, res.Weaknesses)
	assert.Equal(t, "Strong backend profile.", res.Summary)

	msgs := mock.LastMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "Title: Backend Engineer")
	assert.Contains(t, msgs[1].Content, "Description: Go services")
	assert.Contains(t, msgs[1].Content, "Go developer with five years")
	assert.Contains(t, msgs[1].Content, `"matched_skills": {"skill": "description", ...}`, "模板中的花括号应被还原")
	assert.Len(t, mock.LastOptions(), 3)
}

func TestResumeScorer_Defaults(t *testing.T) {
	mock := agent.NewMockChatClient(`{"score": 42, "recommendation": "potential_match"}`, nil)
	res, err := NewResumeScorer(mock).Score(context.Background(), JobContext{Title: "QA"}, "text")
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationPotential, res.Recommendation, "合法结论保留，大小写无关")
	assert.Equal(t, "Evaluation completed.", res.Summary)
	assert.NotNil(t, res.MatchedSkills)
	assert.Contains(t, mock.LastMessages()[1].Content, "No description provided.")
}

func TestResumeScorer_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewResumeScorer(agent.NewMockChatClient("", errors.New("boom"))).Score(ctx, JobContext{}, "x")
	assert.ErrorContains(t, err, "boom")

	_, err = NewResumeScorer(agent.NewMockChatClient("   ", nil)).Score(ctx, JobContext{}, "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = NewResumeScorer(agent.NewMockChatClient("I cannot help with that", nil)).Score(ctx, JobContext{}, "x")
	assert.ErrorContains(t, err, "invalid JSON")

	_, err = NewResumeScorer(agent.NewMockChatClient(`{"summary":"no score"}`, nil)).Score(ctx, JobContext{}, "x")
	assert.ErrorContains(t, err, "invalid score")

	_, err = NewResumeScorer(nil).Score(ctx, JobContext{}, "x")
	assert.Error(t, err)
}

func TestResumeScorer_NonStringRecommendation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"数字", `{"score": 85, "recommendation": 1, "summary": "ok"}`, models.RecommendationStrong},
		{"对象", `{"score": 20, "recommendation": {"label": "STRONG_MATCH"}}`, models.RecommendationWeak},
		{"null", `{"score": 65, "recommendation": null}`, models.RecommendationPotential},
		{"列表", `{"score": 90, "recommendation": ["WEAK_MATCH"]}`, models.RecommendationStrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewResumeScorer(agent.NewMockChatClient(tt.body, nil)).Score(context.Background(), JobContext{Title: "x"}, "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Recommendation)
		})
	}
}

func TestResumeScorer_NonStringSummary(t *testing.T) {
	mock := agent.NewMockChatClient(`{"score": 70, "summary": {"text": "nested"}}`, nil)
	res, err := NewResumeScorer(mock).Score(context.Background(), JobContext{Title: "x"}, "text")
	require.NoError(t, err)
	assert.Equal(t, "Evaluation completed.", res.Summary)
}

func TestResumeScorer_SanitizesQuotes(t *testing.T) {
	mock := agent.NewMockChatClient(`{"score": 60, "summary": "Called "expert" by peers"}`, nil)
	res, err := NewResumeScorer(mock).Score(context.Background(), JobContext{Title: "x"}, "text")
	require.NoError(t, err)
	assert.Equal(t, `Called "expert" by peers`, res.Summary)
}

func TestInterviewGrader_Grade(t *testing.T) {
	mock := agent.NewMockChatClient(`{
  "score": 55,
  "recommendation": "",
  "summary": "Solid fundamentals.",
  "matched_skills": [{"skill": "Go", "reason": "explained goroutines"}],
  "strengths": [{"header": "Communication", "detail": "clear answers"}]
}`, nil)
	grader := NewInterviewGrader(mock)

	grade, err := grader.Grade(context.Background(), JobContext{Title: "Backend"}, []parser.QAPair{
		{Question: "Tell me about yourself.", Answer: "I build APIs."},
		{Question: "What is a goroutine?", Answer: "A lightweight thread."},
	})
	require.NoError(t, err)
	assert.Equal(t, 55, grade.Score)
	assert.Equal(t, models.RecommendationPotential, grade.Recommendation)
	assert.Equal(t, []SkillNote{{Skill: "Go", Reason: "explained goroutines"}}, grade.MatchedSkills)
	assert.Equal(t, []SkillNote{}, grade.MissingSkills)
	assert.Equal(t, []Highlight{{Header: "Communication", Detail: "clear answers"}}, grade.Strengths)
	assert.Equal(t, []Highlight{}, grade.AreasForImprovement)

	msgs := mock.LastMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, `"areas_for_improvement": [`)
	assert.Contains(t, msgs[1].Content, "Role: Backend")
	assert.Contains(t, msgs[1].Content, "What is a goroutine?")
	assert.Less(t, strings.Index(msgs[1].Content, "Tell me about yourself."), strings.Index(msgs[1].Content, "What is a goroutine?"))
}

func TestInterviewGrader_NonStringRecommendation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"数字", `{"score": 85, "recommendation": 3}`, models.RecommendationStrong},
		{"对象", `{"score": 10, "recommendation": {"value": "STRONG_MATCH"}, "summary": 7}`, models.RecommendationWeak},
		{"null", `{"score": 50, "recommendation": null}`, models.RecommendationPotential},
	}
	pairs := []parser.QAPair{{Question: "Q", Answer: "A"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grade, err := NewInterviewGrader(agent.NewMockChatClient(tt.body, nil)).Grade(context.Background(), JobContext{}, pairs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, grade.Recommendation)
			assert.Equal(t, "Evaluation completed.", grade.Summary)
		})
	}
}

func TestInterviewGrader_EmptyTranscript(t *testing.T) {
	mock := agent.NewMockChatClient(`{}`, nil)
	_, err := NewInterviewGrader(mock).Grade(context.Background(), JobContext{}, nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Equal(t, 0, mock.Calls())
}

func TestQuestionGenerator_Generate(t *testing.T) {
	mock := agent.NewMockChatClient("```json\n[\"Tell us about yourself.\", \"\", \"How do you design REST APIs?\", \"Explain Go channels.\", \"Describe MySQL indexing.\", \"Extra question\"]\n```", nil)
	gen := NewQuestionGenerator(mock, 0)

	qs, err := gen.Generate(context.Background(), JobContext{Title: "Go Engineer", Description: "APIs in Go"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Tell us about yourself.",
		"How do you design REST APIs?",
		"Explain Go channels.",
		"Describe MySQL indexing.",
	}, qs)
	assert.Contains(t, mock.LastMessages()[0].Content, `Generate 4 interview questions for the role of "Go Engineer"`)
}

func TestQuestionGenerator_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := NewQuestionGenerator(agent.NewMockChatClient(`[]`, nil), 4).Generate(ctx, JobContext{Title: "x"})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = NewQuestionGenerator(agent.NewMockChatClient(`no array here`, nil), 4).Generate(ctx, JobContext{Title: "x"})
	assert.Error(t, err)
}
