package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/textproto"
	"testing"

	"ai-hiring-go/internal/api/handler"
	"ai-hiring-go/internal/api/router"
	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/candidates"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/intake"
	"ai-hiring-go/internal/interview"
	"ai-hiring-go/internal/jobs"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/token"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "admin-secret"

// ---- fakes ----

type fakeTokens struct {
	issued     []string
	issueErr   error
	bulk       *token.BulkResult
	views      []token.InviteView
	consumed   []string
	consumeErr error
	validation *token.Validation
	validErr   error
}

func (f *fakeTokens) Issue(_ context.Context, email, issuedBy string) (*models.ApplicationToken, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued = append(f.issued, email)
	return &models.ApplicationToken{Token: "tok", Email: email, IssuedBy: issuedBy, Status: models.TokenStatusPending}, nil
}

func (f *fakeTokens) BulkIssue(_ context.Context, emails []string, _ string) (*token.BulkResult, error) {
	if f.bulk != nil {
		return f.bulk, nil
	}
	return &token.BulkResult{Success: len(emails), Errors: []string{}}, nil
}

func (f *fakeTokens) List(_ context.Context, _ string) ([]token.InviteView, error) {
	return f.views, nil
}

func (f *fakeTokens) Consume(_ context.Context, value string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = append(f.consumed, value)
	return nil
}

func (f *fakeTokens) Validate(_ context.Context, _ string) (*token.Validation, error) {
	return f.validation, f.validErr
}

type fakeIntake struct {
	got *intake.Submission
	err error
}

func (f *fakeIntake) Submit(_ context.Context, sub intake.Submission) (*intake.Result, error) {
	f.got = &sub
	if f.err != nil {
		return nil, f.err
	}
	return &intake.Result{CandidateID: "cand-1", DocumentID: 7, Queued: true}, nil
}

type fakeJobs struct {
	jobs      map[string]*models.Job
	deleted   []string
	createErr error
}

func (f *fakeJobs) Create(_ context.Context, in jobs.Input) (*models.Job, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Job{JobID: "job-new", Title: in.Title, Status: "OPEN"}, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*models.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, apperr.NotFound("jobs.Get", "Job not found")
}

func (f *fakeJobs) List(_ context.Context) ([]models.Job, error) {
	out := []models.Job{}
	for _, j := range f.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (f *fakeJobs) ListOpen(_ context.Context) ([]jobs.PublicJob, error) {
	return []jobs.PublicJob{{ID: "job-1", Title: "Go Engineer"}}, nil
}

func (f *fakeJobs) Update(_ context.Context, id string, in jobs.Input) (*models.Job, error) {
	j, err := f.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	j.Title = in.Title
	return j, nil
}

func (f *fakeJobs) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCandidates struct {
	filter    storage.CandidateFilter
	status    string
	message   string
	requeued  []string
	statusErr error
}

func (f *fakeCandidates) List(_ context.Context, filter storage.CandidateFilter) ([]candidates.Summary, error) {
	f.filter = filter
	return []candidates.Summary{{Candidate: models.Candidate{CandidateID: "cand-1"}, JobTitle: "Go Engineer"}}, nil
}

func (f *fakeCandidates) Get(_ context.Context, id string) (*candidates.Detail, error) {
	if id != "cand-1" {
		return nil, apperr.NotFound("candidates.Get", "Candidate not found")
	}
	return &candidates.Detail{Candidate: models.Candidate{CandidateID: id}, Documents: []candidates.DocumentView{}}, nil
}

func (f *fakeCandidates) UpdateStatus(_ context.Context, _ string, status, message string) (*candidates.StatusResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.status, f.message = status, message
	return &candidates.StatusResult{Message: "Status updated to " + status, InterviewLink: "https://app/interview/x"}, nil
}

func (f *fakeCandidates) Requeue(_ context.Context, id string) error {
	f.requeued = append(f.requeued, id)
	return nil
}

type fakeInterviews struct {
	sessionQuestionCalls int
	nextArgs             []string
	question             *models.InterviewQuestion
	answer               *interview.Answer
	answerErr            error
	completion           *interview.Completion
	media                *interview.MediaUpload
}

func (f *fakeInterviews) ValidateAccessToken(_ context.Context, tok string) (*models.InterviewSession, error) {
	if tok != "good" {
		return nil, apperr.NotFound("interview.ValidateAccessToken", interview.MsgInvalidLink)
	}
	return &models.InterviewSession{SessionID: "s-1", Status: models.SessionStatusPending}, nil
}

func (f *fakeInterviews) CreateOrResume(_ context.Context, candidateID, jobID string) (*models.InterviewSession, error) {
	return &models.InterviewSession{SessionID: "s-1", CandidateID: candidateID, JobID: jobID}, nil
}

func (f *fakeInterviews) NextQuestion(_ context.Context, jobID, last string) (*models.InterviewQuestion, error) {
	f.nextArgs = []string{jobID, last}
	return f.question, nil
}

func (f *fakeInterviews) SessionQuestion(_ context.Context, _ string) (*models.InterviewQuestion, error) {
	f.sessionQuestionCalls++
	return f.question, nil
}

func (f *fakeInterviews) RecordResponse(_ context.Context, a interview.Answer) (*models.InterviewResponse, error) {
	f.answer = &a
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	text := a.AnswerText
	if text == "" && len(a.Audio) > 0 {
		text = "transcribed"
	}
	return &models.InterviewResponse{SessionID: a.SessionID, QuestionID: a.QuestionID, AnswerText: text}, nil
}

func (f *fakeInterviews) Complete(_ context.Context, id string, _ *int) (*interview.Completion, error) {
	if f.completion != nil {
		return f.completion, nil
	}
	return &interview.Completion{
		Session: &models.InterviewSession{SessionID: id, Status: models.SessionStatusCompleted},
		Grade:   &evaluator.InterviewGrade{Score: 80, Recommendation: "STRONG_MATCH"},
	}, nil
}

func (f *fakeInterviews) UploadMedia(_ context.Context, m interview.MediaUpload) (*interview.MediaResult, error) {
	f.media = &m
	return &interview.MediaResult{Kind: m.Kind, Bucket: "media", Path: "p", URL: "http://minio/media/p"}, nil
}

type fakeRegrader struct {
	err error
}

func (f *fakeRegrader) Regrade(_ context.Context, _ string) (*evaluator.InterviewGrade, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &evaluator.InterviewGrade{Score: 55, Recommendation: "POTENTIAL_MATCH"}, nil
}

type fakeSpeaker struct {
	err   error
	texts []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("ID3"), nil
}

// ---- fixture ----

type fixture struct {
	h          *server.Hertz
	tokens     *fakeTokens
	intake     *fakeIntake
	jobs       *fakeJobs
	candidates *fakeCandidates
	interviews *fakeInterviews
	regrader   *fakeRegrader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tokens: &fakeTokens{},
		intake: &fakeIntake{},
		jobs: &fakeJobs{jobs: map[string]*models.Job{
			"job-1": {JobID: "job-1", Title: "Go Engineer", Status: "OPEN"},
		}},
		candidates: &fakeCandidates{},
		interviews: &fakeInterviews{},
		regrader:   &fakeRegrader{},
	}
	f.h = server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(f.h, router.Handlers{
		Invites:    handler.NewInviteHandler(f.tokens),
		Apply:      handler.NewApplyHandler(f.tokens, f.intake, f.jobs),
		Jobs:       handler.NewJobHandler(f.jobs),
		Candidates: handler.NewCandidateHandler(f.candidates),
		Interview:  handler.NewInterviewHandler(f.interviews, f.regrader),
	}, testAdminKey)
	return f
}

func (f *fixture) do(method, url string, body []byte, headers ...ut.Header) *ut.ResponseRecorder {
	var b *ut.Body
	if body != nil {
		b = &ut.Body{Body: bytes.NewReader(body), Len: len(body)}
	}
	return ut.PerformRequest(f.h.Engine, method, url, b, headers...)
}

func (f *fixture) admin(method, url string, body any) *ut.ResponseRecorder {
	return f.do(method, url, mustJSON(body),
		ut.Header{Key: "Content-Type", Value: "application/json"},
		ut.Header{Key: handler.HeaderAdminKey, Value: testAdminKey})
}

func (f *fixture) public(method, url string, body any) *ut.ResponseRecorder {
	return f.do(method, url, mustJSON(body), ut.Header{Key: "Content-Type", Value: "application/json"})
}

func mustJSON(v any) []byte {
	if v == nil {
		return nil
	}
	if raw, ok := v.(string); ok {
		return []byte(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out), string(w.Result().Body()))
	return out
}

type formFile struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, ff := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+ff.field+`"; filename="`+ff.filename+`"`)
		h.Set("Content-Type", ff.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(ff.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

// ---- tests ----

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/health", nil, ut.Header{Key: handler.HeaderRequestID, Value: "req-42"})
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.Equal(t, "req-42", w.Result().Header.Get(handler.HeaderRequestID))

	w = f.do("GET", "/health", nil)
	assert.NotEmpty(t, w.Result().Header.Get(handler.HeaderRequestID))
}

func TestAdminRoutesRequireKey(t *testing.T) {
	f := newFixture(t)

	w := f.public("GET", "/api/jobs", nil)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "Invalid or missing API key", decode(t, w)["error"])

	w = f.do("GET", "/api/jobs", nil, ut.Header{Key: handler.HeaderAdminKey, Value: "wrong"})
	assert.Equal(t, 401, w.Code)

	w = f.admin("GET", "/api/jobs", nil)
	assert.Equal(t, 200, w.Code)

	// 面试开始和重新评分也属于招聘方接口
	assert.Equal(t, 401, f.public("POST", "/api/interview/start", map[string]string{"candidate_id": "c", "job_id": "j"}).Code)
	assert.Equal(t, 401, f.public("POST", "/api/interview/s-1/grade", nil).Code)
}

func TestAdminAuthDisabledWithoutKey(t *testing.T) {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	js := &fakeJobs{jobs: map[string]*models.Job{}}
	router.RegisterRoutes(h, router.Handlers{
		Invites:    handler.NewInviteHandler(&fakeTokens{}),
		Apply:      handler.NewApplyHandler(&fakeTokens{}, &fakeIntake{}, js),
		Jobs:       handler.NewJobHandler(js),
		Candidates: handler.NewCandidateHandler(&fakeCandidates{}),
		Interview:  handler.NewInterviewHandler(&fakeInterviews{}, &fakeRegrader{}),
	}, "")

	w := ut.PerformRequest(h.Engine, "GET", "/api/jobs", nil)
	assert.Equal(t, 200, w.Code)
}

func TestInvites(t *testing.T) {
	f := newFixture(t)

	w := f.admin("POST", "/api/invites", map[string]string{"email": "a@example.com", "issued_by": "hr-1"})
	require.Equal(t, 201, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "a@example.com", body["data"].(map[string]any)["email"])

	f.tokens.issueErr = apperr.Validation("token.Issue", "Invalid email format")
	w = f.admin("POST", "/api/invites", map[string]string{"email": "nope", "issued_by": "hr-1"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Invalid email format", decode(t, w)["error"])

	f.tokens.issueErr = apperr.Dependency("token.Issue", "", errors.New("db down"))
	w = f.admin("POST", "/api/invites", map[string]string{"email": "a@example.com", "issued_by": "hr-1"})
	assert.Equal(t, 500, w.Code)
	assert.Equal(t, apperr.GenericMessage, decode(t, w)["error"])

	w = f.admin("POST", "/api/invites/bulk", map[string]any{"emails": []string{"a@x.io", "b@x.io"}, "issued_by": "hr-1"})
	require.Equal(t, 201, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["success"])

	w = f.admin("GET", "/api/invites", nil)
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "issued_by is required", decode(t, w)["error"])

	f.tokens.views = []token.InviteView{{ID: 1, Email: "a@x.io", Status: models.TokenStatusPending}}
	w = f.admin("GET", "/api/invites?issued_by=hr-1", nil)
	require.Equal(t, 200, w.Code)
	var views []map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &views))
	assert.Len(t, views, 1)
}

func TestInviteConsume(t *testing.T) {
	f := newFixture(t)

	w := f.admin("POST", "/api/invites/consume", map[string]string{})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "token is required", decode(t, w)["error"])

	w = f.admin("POST", "/api/invites/consume", map[string]string{"token": "abc"})
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, []string{"abc"}, f.tokens.consumed)

	f.tokens.consumeErr = apperr.Conflict("token.Consume", "This invitation has already been used or expired")
	w = f.admin("POST", "/api/invites/consume", map[string]string{"token": "abc"})
	assert.Equal(t, 400, w.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	f := newFixture(t)

	w := f.admin("POST", "/api/jobs", "{not json")
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, w)["error"])

	w = f.do("POST", "/api/jobs", nil, ut.Header{Key: handler.HeaderAdminKey, Value: testAdminKey})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Request body is required", decode(t, w)["error"])
}

func TestApplyValidate(t *testing.T) {
	f := newFixture(t)

	f.tokens.validation = &token.Validation{Valid: true, Email: "a@example.com", State: token.StateValid}
	body := decode(t, f.public("GET", "/api/apply/validate?token=t", nil))
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "a@example.com", body["email"])

	f.tokens.validation = &token.Validation{State: token.StateExpired, Reason: "Token has expired"}
	body = decode(t, f.public("GET", "/api/apply/validate?token=t", nil))
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Token has expired", body["error"])

	// 存储故障也只回答无效
	f.tokens.validation, f.tokens.validErr = nil, errors.New("db down")
	w := f.public("GET", "/api/apply/validate?token=t", nil)
	assert.Equal(t, 200, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Token is invalid", body["error"])
}

func TestApplyJobs(t *testing.T) {
	f := newFixture(t)
	w := f.public("GET", "/api/apply/jobs", nil)
	require.Equal(t, 200, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Go Engineer", list[0]["title"])
}

func TestApplySubmit(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, map[string]string{
		"name": "Ada", "email": "ada@example.com", "job_id": "job-1", "phone": "123", "token": "form-token",
	}, formFile{field: "resume", filename: "cv.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")})

	w := f.do("POST", "/api/apply/submit", body,
		ut.Header{Key: "Content-Type", Value: ct},
		ut.Header{Key: handler.HeaderApplicationToken, Value: "header-token"})
	require.Equal(t, 201, w.Code, string(w.Result().Body()))
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, intake.MsgSubmittedResponse, out["message"])
	assert.Equal(t, "cand-1", out["candidate_id"])

	got := f.intake.got
	require.NotNil(t, got)
	assert.Equal(t, "header-token", got.Token)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "cv.pdf", got.Filename)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), got.Resume)

	// 没有请求头时使用表单字段
	body, ct = multipartBody(t, map[string]string{"name": "Ada", "job_id": "job-1", "token": "form-token"},
		formFile{field: "resume", filename: "cv.pdf", contentType: "application/pdf", data: []byte("x")})
	w = f.do("POST", "/api/apply/submit", body, ut.Header{Key: "Content-Type", Value: ct})
	require.Equal(t, 201, w.Code)
	assert.Equal(t, "form-token", f.intake.got.Token)
}

func TestApplySubmitErrors(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, map[string]string{"name": "Ada", "job_id": "job-1"})
	w := f.do("POST", "/api/apply/submit", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, intake.MsgMissingFields, decode(t, w)["error"])
	assert.Nil(t, f.intake.got)

	f.intake.err = apperr.Conflict("intake.Submit", intake.MsgTokenUsed)
	body, ct = multipartBody(t, map[string]string{"name": "Ada", "job_id": "job-1"},
		formFile{field: "resume", filename: "cv.pdf", contentType: "application/pdf", data: []byte("x")})
	w = f.do("POST", "/api/apply/submit", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, intake.MsgTokenUsed, decode(t, w)["error"])
}

func TestJobsCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.admin("POST", "/api/jobs", map[string]string{"title": "SRE", "description": "on call"})
	require.Equal(t, 201, w.Code)
	assert.Equal(t, "SRE", decode(t, w)["title"])

	w = f.admin("GET", "/api/jobs/job-1", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "Go Engineer", decode(t, w)["title"])

	w = f.admin("GET", "/api/jobs/missing", nil)
	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "Job not found", decode(t, w)["error"])

	w = f.admin("PUT", "/api/jobs/job-1", map[string]string{"title": "Senior Go Engineer"})
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "Senior Go Engineer", decode(t, w)["title"])

	w = f.admin("DELETE", "/api/jobs/job-1", nil)
	assert.Equal(t, 204, w.Code)
	assert.Equal(t, []string{"job-1"}, f.jobs.deleted)

	f.jobs.createErr = apperr.Validation("jobs.Create", "Title is required")
	w = f.admin("POST", "/api/jobs", map[string]string{"description": "x"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Title is required", decode(t, w)["error"])
}

func TestCandidates(t *testing.T) {
	f := newFixture(t)

	w := f.admin("GET", "/api/candidates?job_id=job-1&status=approved&limit=5&offset=10", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, storage.CandidateFilter{JobID: "job-1", Status: "approved", Limit: 5, Offset: 10}, f.candidates.filter)

	f.admin("GET", "/api/candidates?limit=abc&offset=-3", nil)
	assert.Equal(t, 100, f.candidates.filter.Limit)
	assert.Equal(t, 0, f.candidates.filter.Offset)

	w = f.admin("GET", "/api/candidates/cand-1", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "cand-1", decode(t, w)["id"])

	assert.Equal(t, 404, f.admin("GET", "/api/candidates/nope", nil).Code)

	w = f.admin("PUT", "/api/candidates/cand-1/status", map[string]string{"status": "APPROVED", "message": "welcome"})
	require.Equal(t, 200, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Status updated to APPROVED", body["message"])
	assert.Equal(t, "https://app/interview/x", body["interview_link"])
	assert.Equal(t, "welcome", f.candidates.message)

	w = f.admin("PUT", "/api/candidates/cand-1/status", map[string]string{"message": "x"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "status is required", decode(t, w)["error"])

	w = f.admin("POST", "/api/candidates/cand-1/evaluation/requeue", nil)
	assert.Equal(t, 202, w.Code)
	assert.Equal(t, []string{"cand-1"}, f.candidates.requeued)
}

func TestInterviewValidateAndStart(t *testing.T) {
	f := newFixture(t)

	w := f.public("GET", "/api/interview/validate/good", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "s-1", decode(t, w)["id"])

	w = f.public("GET", "/api/interview/validate/bad", nil)
	assert.Equal(t, 404, w.Code)
	assert.Equal(t, interview.MsgInvalidLink, decode(t, w)["error"])

	w = f.admin("POST", "/api/interview/start", map[string]string{"candidate_id": "c-1", "job_id": "job-1"})
	require.Equal(t, 201, w.Code)
	session := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, "c-1", session["candidate_id"])

	w = f.admin("POST", "/api/interview/start", map[string]string{"candidate_id": "c-1"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "job_id is required", decode(t, w)["error"])
}

func TestInterviewQuestion(t *testing.T) {
	f := newFixture(t)
	f.interviews.question = &models.InterviewQuestion{QuestionID: "q-1", QuestionText: "Tell me about Go", QuestionOrder: 1}

	w := f.public("POST", "/api/interview/question", map[string]string{"session_id": "s-1", "job_id": "ignored"})
	require.Equal(t, 200, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["done"])
	assert.Equal(t, "q-1", body["question"].(map[string]any)["id"])
	assert.Equal(t, 1, f.interviews.sessionQuestionCalls)
	assert.Nil(t, f.interviews.nextArgs)

	f.public("POST", "/api/interview/question", map[string]string{"job_id": "job-1", "last_question_id": "q-0"})
	assert.Equal(t, []string{"job-1", "q-0"}, f.interviews.nextArgs)

	f.interviews.question = nil
	body = decode(t, f.public("POST", "/api/interview/question", map[string]string{"job_id": "job-1"}))
	assert.Equal(t, true, body["done"])
	assert.Nil(t, body["question"])

	w = f.public("POST", "/api/interview/question", map[string]string{"last_question_id": "q-0"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "job_id is required", decode(t, w)["error"])
}

func TestInterviewQuestionAudio(t *testing.T) {
	speaker := &fakeSpeaker{}
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	js := &fakeJobs{jobs: map[string]*models.Job{}}
	interviews := &fakeInterviews{question: &models.InterviewQuestion{QuestionID: "q-1", QuestionText: "Tell me about Go", QuestionOrder: 1}}
	router.RegisterRoutes(h, router.Handlers{
		Invites:    handler.NewInviteHandler(&fakeTokens{}),
		Apply:      handler.NewApplyHandler(&fakeTokens{}, &fakeIntake{}, js),
		Jobs:       handler.NewJobHandler(js),
		Candidates: handler.NewCandidateHandler(&fakeCandidates{}),
		Interview:  handler.NewInterviewHandler(interviews, &fakeRegrader{}).WithSpeaker(speaker),
	}, "")
	ask := func() map[string]any {
		body := mustJSON(map[string]string{"job_id": "job-1"})
		w := ut.PerformRequest(h.Engine, "POST", "/api/interview/question",
			&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
			ut.Header{Key: "Content-Type", Value: "application/json"})
		require.Equal(t, 200, w.Code)
		return decode(t, w)
	}

	body := ask()
	assert.Equal(t, "data:audio/mp3;base64,SUQz", body["audio_base64"])
	assert.Equal(t, []string{"Tell me about Go"}, speaker.texts)

	speaker.err = errors.New("tts down")
	body = ask()
	assert.Nil(t, body["audio_base64"], "合成失败时仍返回题目")
	assert.Equal(t, "q-1", body["question"].(map[string]any)["id"])
}

func TestInterviewQuestionWithoutSpeaker(t *testing.T) {
	f := newFixture(t)
	f.interviews.question = &models.InterviewQuestion{QuestionID: "q-1", QuestionText: "Tell me about Go", QuestionOrder: 1}

	body := decode(t, f.public("POST", "/api/interview/question", map[string]string{"job_id": "job-1"}))
	v, ok := body["audio_base64"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestInterviewAnswerJSON(t *testing.T) {
	f := newFixture(t)

	w := f.public("POST", "/api/interview/answer", map[string]string{
		"session_id": "s-1", "question_id": "q-1", "answer_text": "goroutines",
	})
	require.Equal(t, 201, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "goroutines", body["transcript"])

	w = f.public("POST", "/api/interview/answer", map[string]string{"session_id": "s-1"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "question_id is required", decode(t, w)["error"])

	f.interviews.answerErr = apperr.Conflict("interview.RecordResponse", interview.MsgOutOfOrder)
	w = f.public("POST", "/api/interview/answer", map[string]string{"session_id": "s-1", "question_id": "q-9", "answer_text": "x"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, interview.MsgOutOfOrder, decode(t, w)["error"])
}

func TestInterviewAnswerMultipartAudio(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, map[string]string{"session_id": "s-1", "question_id": "q-1"},
		formFile{field: "audio_chunk", filename: "a.webm", contentType: "audio/webm", data: []byte("RIFF")})
	w := f.do("POST", "/api/interview/answer", body, ut.Header{Key: "Content-Type", Value: ct})
	require.Equal(t, 201, w.Code, string(w.Result().Body()))
	assert.Equal(t, "transcribed", decode(t, w)["transcript"])

	a := f.interviews.answer
	require.NotNil(t, a)
	assert.Equal(t, "s-1", a.SessionID)
	assert.Equal(t, []byte("RIFF"), a.Audio)
	assert.Equal(t, "a.webm", a.AudioFilename)
}

func TestInterviewComplete(t *testing.T) {
	f := newFixture(t)

	w := f.public("POST", "/api/interview/complete", map[string]any{"session_id": "s-1", "duration_seconds": 600})
	require.Equal(t, 200, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 80, body["grade"].(map[string]any)["score"])

	f.interviews.completion = &interview.Completion{
		Session:      &models.InterviewSession{SessionID: "s-1", Status: models.SessionStatusCompleted},
		GradingError: "Failed to grade interview",
	}
	w = f.public("POST", "/api/interview/complete", map[string]any{"session_id": "s-1"})
	require.Equal(t, 200, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to grade interview", body["grading_error"])

	w = f.public("POST", "/api/interview/complete", map[string]any{"session_id": "s-1", "duration_seconds": -1})
	assert.Equal(t, 400, w.Code)
}

func TestInterviewUploadMedia(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, map[string]string{"session_id": "s-1"},
		formFile{field: "file", filename: "full.webm", contentType: "video/webm", data: []byte("video")})
	w := f.do("POST", "/api/interview/upload-media", body, ut.Header{Key: "Content-Type", Value: ct})
	require.Equal(t, 201, w.Code, string(w.Result().Body()))
	assert.Equal(t, "http://minio/media/p", decode(t, w)["url"])
	require.NotNil(t, f.interviews.media)
	assert.Equal(t, interview.MediaVideo, f.interviews.media.Kind)
	assert.Equal(t, "video/webm", f.interviews.media.ContentType)

	body, ct = multipartBody(t, map[string]string{"session_id": "s-1", "type": "Transcript"},
		formFile{field: "file", filename: "t.pdf", contentType: "application/pdf", data: []byte("%PDF")})
	f.do("POST", "/api/interview/upload-media", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, interview.MediaTranscript, f.interviews.media.Kind)

	body, ct = multipartBody(t, map[string]string{"session_id": "s-1"})
	w = f.do("POST", "/api/interview/upload-media", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "file is required", decode(t, w)["error"])
}

func TestInterviewRegrade(t *testing.T) {
	f := newFixture(t)

	w := f.admin("POST", "/api/interview/s-1/grade", nil)
	require.Equal(t, 200, w.Code)
	assert.EqualValues(t, 55, decode(t, w)["grade"].(map[string]any)["score"])

	f.regrader.err = apperr.Conflict("grading.Regrade", "Interview session is not completed")
	w = f.admin("POST", "/api/interview/s-1/grade", nil)
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "Interview session is not completed", decode(t, w)["error"])
}
