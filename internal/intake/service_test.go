package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 同时实现 token.Store 和 Store，保证令牌消费与校验看到同一份数据
type memStore struct {
	mu          sync.Mutex
	tokens      map[string]*models.ApplicationToken
	candidates  map[string]*models.Candidate
	docs        []*models.CandidateDocument
	evaluations map[string]*models.AIEvaluation

	createErr error
	attachErr error
	upsertErr error
	deleted   []string
	// beforeAttach 模拟并发提交在事务前抢先消费令牌
	beforeAttach func()
}

func newMemStore() *memStore {
	return &memStore{
		tokens:      map[string]*models.ApplicationToken{},
		candidates:  map[string]*models.Candidate{},
		evaluations: map[string]*models.AIEvaluation{},
	}
}

func (m *memStore) CreateApplicationToken(_ context.Context, t *models.ApplicationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memStore) GetApplicationToken(_ context.Context, value string) (*models.ApplicationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ExpireApplicationToken(_ context.Context, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok || t.Status != models.TokenStatusPending {
		return false, nil
	}
	t.Status = models.TokenStatusExpired
	return true, nil
}

func (m *memStore) ConsumeApplicationToken(_ context.Context, value string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeLocked(value, usedAt)
}

func (m *memStore) consumeLocked(value string, usedAt time.Time) error {
	t, ok := m.tokens[value]
	if !ok || t.Status != models.TokenStatusPending {
		return storage.ErrStaleState
	}
	t.Status = models.TokenStatusUsed
	t.UsedAt = &usedAt
	return nil
}

func (m *memStore) ListApplicationTokens(context.Context, string) ([]models.ApplicationToken, error) {
	return nil, nil
}

func (m *memStore) CreateCandidate(_ context.Context, c *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.candidates {
		if existing.Email == c.Email && existing.JobID == c.JobID {
			return storage.ErrDuplicateKey
		}
	}
	cp := *c
	m.candidates[c.CandidateID] = &cp
	return nil
}

func (m *memStore) DeleteCandidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candidates, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) AttachDocumentAndConsumeToken(_ context.Context, doc *models.CandidateDocument, value string, usedAt time.Time) error {
	if m.beforeAttach != nil {
		m.beforeAttach()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	t, ok := m.tokens[value]
	if !ok || t.Status != models.TokenStatusPending {
		return storage.ErrStaleState
	}
	doc.ID = uint64(len(m.docs) + 1)
	cp := *doc
	m.docs = append(m.docs, &cp)
	return m.consumeLocked(value, usedAt)
}

func (m *memStore) UpsertAIEvaluation(_ context.Context, e *models.AIEvaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *e
	m.evaluations[e.CandidateID] = &cp
	return nil
}

type memObjects struct {
	putErr  error
	objects map[string][]byte
	deleted []storage.ObjectRef
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(_ context.Context, bucket, objectPath string, data []byte, _ string) (*storage.PutResult, error) {
	if o.putErr != nil {
		return nil, o.putErr
	}
	o.objects[bucket+"/"+objectPath] = data
	ref := storage.ObjectRef{Bucket: bucket, Path: objectPath}
	return &storage.PutResult{ObjectRef: ref, URL: "http://minio/" + bucket + "/" + objectPath, SHA256: "abc", Size: int64(len(data))}, nil
}

func (o *memObjects) Delete(_ context.Context, ref storage.ObjectRef) error {
	delete(o.objects, ref.Bucket+"/"+ref.Path)
	o.deleted = append(o.deleted, ref)
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractClean(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeQueue struct {
	err  error
	msgs []*storage.EvaluationJobMessage
}

func (q *fakeQueue) Enqueue(_ context.Context, msg *storage.EvaluationJobMessage) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

type fixture struct {
	store   *memStore
	objects *memObjects
	queue   *fakeQueue
	tokens  *token.Service
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	objects := newMemObjects()
	queue := &fakeQueue{}
	tokens := token.NewService(store, nil, 0)
	extractor := &fakeExtractor{text: strings.Repeat("Go engineer with MySQL experience. ", 3)}
	svc := NewService(store, tokens, objects, extractor, queue, "resumes")
	return &fixture{store: store, objects: objects, queue: queue, tokens: tokens, svc: svc}
}

func (f *fixture) issue(t *testing.T, email string) string {
	t.Helper()
	tok, err := f.tokens.Issue(context.Background(), email, "recruiter-1")
	require.NoError(t, err)
	return tok.Token
}

func validSubmission(tok string) Submission {
	return Submission{
		Token:       tok,
		Name:        "  Alice  ",
		Email:       "alice@x.com",
		JobID:       "J1",
		Phone:       " 123 ",
		Filename:    "Alice CV.pdf",
		ContentType: "application/pdf",
		Resume:      []byte("%PDF-1.4 fake"),
	}
}

func TestSubmit_HappyPathThenReplay(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t, "alice@x.com")

	res, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.NoError(t, err)
	assert.True(t, res.Queued)

	cand := f.store.candidates[res.CandidateID]
	require.NotNil(t, cand)
	assert.Equal(t, "Alice", cand.Name)
	assert.Equal(t, "123", cand.Phone)
	assert.Equal(t, "alice@x.com", cand.Email)
	assert.Equal(t, models.CandidateStatusPending, cand.Status)

	require.Len(t, f.store.docs, 1)
	doc := f.store.docs[0]
	assert.Equal(t, "resumes", doc.StorageBucket)
	assert.True(t, strings.HasPrefix(doc.StoragePath, res.CandidateID+"/"))
	assert.True(t, strings.HasSuffix(doc.StoragePath, "-Alice_CV.pdf"))

	assert.Equal(t, models.TokenStatusUsed, f.store.tokens[tok].Status)
	assert.Equal(t, models.EvaluationStatusPending, f.store.evaluations[res.CandidateID].Status)
	assert.Equal(t, constants.PendingEvaluationSummary, f.store.evaluations[res.CandidateID].Summary)

	require.Len(t, f.queue.msgs, 1)
	msg := f.queue.msgs[0]
	assert.Equal(t, res.CandidateID, msg.CandidateID)
	assert.Equal(t, "J1", msg.JobID)
	assert.Equal(t, doc.StoragePath, msg.ResumePath)
	assert.NotEmpty(t, msg.ResumeText)

	_, err = f.svc.Submit(context.Background(), validSubmission(tok))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, MsgTokenUsed, apperr.PublicMessage(err))
	assert.Len(t, f.store.candidates, 1)
}

func TestSubmit_EmailMismatchCreatesNothing(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t, "alice@x.com")

	sub := validSubmission(tok)
	sub.Email = "mallory@x.com"
	_, err := f.svc.Submit(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, MsgEmailMismatch, apperr.PublicMessage(err))
	assert.Empty(t, f.store.candidates)
	assert.Empty(t, f.store.docs)
	assert.Empty(t, f.objects.objects)
	assert.Equal(t, models.TokenStatusPending, f.store.tokens[tok].Status)
}

func TestSubmit_EmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t, "alice@x.com")
	sub := validSubmission(tok)
	sub.Email = " Alice@X.com "
	_, err := f.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
}

func TestSubmit_TokenStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, validSubmission(""))
	assert.Equal(t, MsgTokenRequired, apperr.PublicMessage(err))

	_, err = f.svc.Submit(ctx, validSubmission("nope"))
	assert.Equal(t, MsgTokenInvalid, apperr.PublicMessage(err))

	f.store.tokens["old"] = &models.ApplicationToken{Token: "old", Email: "alice@x.com", Status: models.TokenStatusPending, ExpiresAt: time.Now().Add(-time.Minute)}
	_, err = f.svc.Submit(ctx, validSubmission("old"))
	assert.Equal(t, MsgTokenExpired, apperr.PublicMessage(err))
	assert.Equal(t, models.TokenStatusExpired, f.store.tokens["old"].Status)
}

func TestSubmit_PayloadValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		msg    string
	}{
		{"缺少姓名", func(s *Submission) { s.Name = " " }, MsgMissingFields},
		{"缺少岗位", func(s *Submission) { s.JobID = "" }, MsgMissingFields},
		{"缺少文件", func(s *Submission) { s.Resume = nil }, MsgMissingFields},
		{"非法类型", func(s *Submission) { s.ContentType = "image/png"; s.Filename = "cv.png" }, MsgInvalidFileType},
		{"超过大小", func(s *Submission) { s.Resume = make([]byte, constants.MaxResumeBytes+1) }, MsgFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub := validSubmission(f.issue(t, "alice@x.com"))
			tt.mutate(&sub)
			_, err := f.svc.Submit(context.Background(), sub)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, tt.msg, apperr.PublicMessage(err))
			assert.Empty(t, f.store.candidates)
		})
	}
}

func TestSubmit_OctetStreamDocxAccepted(t *testing.T) {
	f := newFixture(t)
	sub := validSubmission(f.issue(t, "alice@x.com"))
	sub.ContentType = "application/octet-stream"
	sub.Filename = "cv.docx"
	_, err := f.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", f.store.docs[0].ContentType)
}

func TestSubmit_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	f.store.candidates["existing"] = &models.Candidate{CandidateID: "existing", Email: "alice@x.com", JobID: "J1"}

	tok := f.issue(t, "alice@x.com")
	_, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, MsgDuplicate, apperr.PublicMessage(err))
	assert.Equal(t, models.TokenStatusPending, f.store.tokens[tok].Status)
}

func TestSubmit_CreateFailureIsDependency(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = errors.New("deadlock")
	_, err := f.svc.Submit(context.Background(), validSubmission(f.issue(t, "alice@x.com")))
	assert.True(t, apperr.Is(err, apperr.KindDependency))
	assert.Equal(t, MsgCreateFailed, apperr.PublicMessage(err))
}

func TestSubmit_UploadFailureDeletesCandidate(t *testing.T) {
	f := newFixture(t)
	f.objects.putErr = errors.New("minio unreachable")
	tok := f.issue(t, "alice@x.com")

	_, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDependency))
	assert.Equal(t, MsgUploadFailed, apperr.PublicMessage(err))
	assert.Empty(t, f.store.candidates, "候选人记录应被补偿删除")
	assert.Len(t, f.store.deleted, 1)
	assert.Equal(t, models.TokenStatusPending, f.store.tokens[tok].Status)
}

func TestSubmit_DocumentFailureCompensatesBoth(t *testing.T) {
	f := newFixture(t)
	f.store.attachErr = errors.New("insert failed")
	tok := f.issue(t, "alice@x.com")

	_, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.Error(t, err)
	assert.Equal(t, MsgDocumentFailed, apperr.PublicMessage(err))
	assert.Empty(t, f.store.candidates)
	assert.Empty(t, f.objects.objects, "已上传对象应被删除")
	assert.Len(t, f.objects.deleted, 1)
	assert.Equal(t, models.TokenStatusPending, f.store.tokens[tok].Status)
}

func TestSubmit_ConcurrentConsumeCompensates(t *testing.T) {
	f := newFixture(t)
	tok := f.issue(t, "alice@x.com")
	f.store.beforeAttach = func() {
		_ = f.store.ConsumeApplicationToken(context.Background(), tok, time.Now())
	}

	_, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, MsgTokenUsed, apperr.PublicMessage(err))
	assert.Empty(t, f.store.candidates)
	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.store.docs)
}

func TestSubmit_SideStepFailuresAreTolerated(t *testing.T) {
	f := newFixture(t)
	f.store.upsertErr = errors.New("pending row failed")
	f.queue.err = errors.New("queue down")
	tok := f.issue(t, "alice@x.com")

	res, err := f.svc.Submit(context.Background(), validSubmission(tok))
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Equal(t, models.TokenStatusUsed, f.store.tokens[tok].Status)
}

func TestSubmit_ExtractionFailureLeavesTextEmpty(t *testing.T) {
	f := newFixture(t)
	f.svc.extractor = &fakeExtractor{err: errors.New("scanned pdf")}
	_, err := f.svc.Submit(context.Background(), validSubmission(f.issue(t, "alice@x.com")))
	require.NoError(t, err)
	require.Len(t, f.queue.msgs, 1)
	assert.Empty(t, f.queue.msgs[0].ResumeText)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "My_Resume__2024_.pdf", SanitizeFilename("My Resume (2024).pdf"))
	assert.Equal(t, "a-b.c", SanitizeFilename("a-b.c"))
	assert.Equal(t, "__.docx", SanitizeFilename("简历.docx"))
}

func TestResumeObjectPath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "cid/1700000000123-cv.pdf", ResumeObjectPath("cid", "cv.pdf", at))
}
