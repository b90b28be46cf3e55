// Package intake 候选人申请提交流程。
//
// 提交是一个手工 saga：候选人记录、简历对象、简历记录加令牌消费依次写入，
// 后一步失败时按相反顺序撤销前面已经产生的副作用。评估记录和评估任务在 saga 之外，
// 失败只记日志，可通过手动重新排队补救。
package intake

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/constants"
	"ai-hiring-go/internal/evaluation"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"
	"ai-hiring-go/internal/storage/models"
	"ai-hiring-go/internal/token"
	"ai-hiring-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ai-hiring-go/intake")

// 对外文案
const (
	MsgTokenRequired     = "Application token is required"
	MsgTokenInvalid      = "Invalid application token"
	MsgTokenUsed         = "This invitation has already been used or expired"
	MsgTokenExpired      = "This invitation has expired"
	MsgEmailMismatch     = "Email mismatch. Please use the email from your invitation."
	MsgMissingFields     = "Name, job selection, and resume are required"
	MsgInvalidFileType   = "Invalid file type. Please upload PDF or Word document."
	MsgFileTooLarge      = "File size must be less than 5MB"
	MsgDuplicate         = "You have already applied for this position. We have your previous application on file."
	MsgCreateFailed      = "Failed to create application record."
	MsgUploadFailed      = "Failed to upload resume"
	MsgDocumentFailed    = "Failed to save document information"
	MsgSubmittedResponse = "Application submitted successfully"
)

var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Store saga 涉及的关系库操作
type Store interface {
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	DeleteCandidate(ctx context.Context, candidateID string) error
	AttachDocumentAndConsumeToken(ctx context.Context, doc *models.CandidateDocument, token string, usedAt time.Time) error
	UpsertAIEvaluation(ctx context.Context, e *models.AIEvaluation) error
}

// TokenValidator 由 token.Service 实现
type TokenValidator interface {
	Validate(ctx context.Context, value string) (*token.Validation, error)
}

// ObjectStore 简历对象的写入与补偿删除
type ObjectStore interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (*storage.PutResult, error)
	Delete(ctx context.Context, ref storage.ObjectRef) error
}

// TextExtractor 提交时同步尝试提取文本
type TextExtractor interface {
	ExtractClean(ctx context.Context, data []byte, filename string) (string, error)
}

// Enqueuer 由 evaluation.Dispatcher 实现
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *storage.EvaluationJobMessage) error
}

// Submission 一次申请提交
type Submission struct {
	Token       string
	Name        string
	Email       string
	JobID       string
	Phone       string
	Filename    string
	ContentType string
	Resume      []byte
}

// Result 提交成功后的候选人
type Result struct {
	CandidateID string `json:"candidate_id"`
	DocumentID  uint64 `json:"document_id"`
	Queued      bool   `json:"queued"`
}

// Service 申请提交服务
type Service struct {
	store     Store
	tokens    TokenValidator
	objects   ObjectStore
	extractor TextExtractor
	queue     Enqueuer
	bucket    string
	now       func() time.Time
	newID     func() string
}

// NewService bucket 为简历桶名
func NewService(store Store, tokens TokenValidator, objects ObjectStore, extractor TextExtractor, queue Enqueuer, bucket string) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		objects:   objects,
		extractor: extractor,
		queue:     queue,
		bucket:    bucket,
		now:       time.Now,
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Submit 执行完整提交流程
func (s *Service) Submit(ctx context.Context, sub Submission) (res *Result, err error) {
	const op = "intake.Submit"
	ctx, span := tracer.Start(ctx, "intake.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", sub.JobID),
		attribute.String("candidate.email", tracing.SafeAttributeValue("candidate.email", sub.Email, tracing.DefaultMaxLength)),
	)
	defer func() {
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		errType := tracing.ErrorTypeInternal
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			errType = tracing.ErrorTypeValidation
		case apperr.KindConflict:
			errType = tracing.ErrorTypeConflict
		}
		tracing.RecordError(span, err, errType)
	}()

	// 1. 令牌与身份
	tokenEmail, err := s.resolveToken(ctx, op, sub)
	if err != nil {
		return nil, err
	}

	// 2. 表单
	contentType, err := validatePayload(op, sub)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx).With().Str("job_id", sub.JobID).Logger()

	// 3. 尽力同步提取文本，失败交给 worker 重新下载
	resumeText := s.extractText(ctx, sub)

	// 4. 候选人记录
	candidateID := s.newID()
	span.SetAttributes(attribute.String("candidate.id", candidateID))
	log = log.With().Str("candidate_id", candidateID).Logger()

	cand := &models.Candidate{
		CandidateID: candidateID,
		JobID:       sub.JobID,
		Name:        strings.TrimSpace(sub.Name),
		Email:       tokenEmail,
		Phone:       strings.TrimSpace(sub.Phone),
		Status:      models.CandidateStatusPending,
	}
	if err := s.store.CreateCandidate(ctx, cand); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, apperr.Conflict(op, MsgDuplicate)
		}
		return nil, apperr.Dependency(op, MsgCreateFailed, err)
	}

	// 5. 上传简历
	filename := sub.Filename
	if filename == "" {
		filename = "resume.pdf"
	}
	objectPath := ResumeObjectPath(candidateID, filename, s.now())
	put, err := s.objects.Put(ctx, s.bucket, objectPath, sub.Resume, contentType)
	if err != nil {
		s.deleteCandidate(ctx, candidateID)
		return nil, apperr.Dependency(op, MsgUploadFailed, err)
	}

	// 6 + 7. 简历记录与令牌消费在同一事务内
	doc := &models.CandidateDocument{
		CandidateID:      candidateID,
		StorageBucket:    put.Bucket,
		StoragePath:      put.Path,
		FileHash:         put.SHA256,
		OriginalFilename: filename,
		ContentType:      contentType,
	}
	if err := s.store.AttachDocumentAndConsumeToken(ctx, doc, sub.Token, s.now()); err != nil {
		s.deleteCandidate(ctx, candidateID)
		s.deleteObject(ctx, put.ObjectRef)
		if errors.Is(err, storage.ErrStaleState) {
			// 并发提交抢先消费了令牌
			return nil, apperr.Conflict(op, MsgTokenUsed)
		}
		return nil, apperr.Dependency(op, MsgDocumentFailed, err)
	}

	// 8. 评估占位记录
	if err := s.store.UpsertAIEvaluation(ctx, evaluation.PendingEvaluation(candidateID)); err != nil {
		apperr.Warn(ctx, "intake.PendingEvaluation", err)
	}

	// 9. 投递评估任务
	queued := true
	if err := s.queue.Enqueue(ctx, &storage.EvaluationJobMessage{
		CandidateID:   candidateID,
		JobID:         sub.JobID,
		ResumePath:    put.Path,
		StorageBucket: put.Bucket,
		StorageURL:    put.URL,
		ResumeText:    resumeText,
		OriginalName:  filename,
	}); err != nil {
		queued = false
		log.Error().Err(err).Msg("评估任务投递失败，候选人将停留在 PENDING，需要手动重新排队")
	}

	log.Info().Bool("queued", queued).Int("resume_bytes", len(sub.Resume)).Msg("申请已提交")
	return &Result{CandidateID: candidateID, DocumentID: doc.ID, Queued: queued}, nil
}

func (s *Service) resolveToken(ctx context.Context, op string, sub Submission) (string, error) {
	if strings.TrimSpace(sub.Token) == "" {
		return "", apperr.Validation(op, MsgTokenRequired)
	}
	v, err := s.tokens.Validate(ctx, sub.Token)
	if err != nil {
		return "", err
	}
	if !v.Valid {
		switch v.State {
		case token.StateUsed:
			return "", apperr.Conflict(op, MsgTokenUsed)
		case token.StateExpired:
			return "", apperr.Validation(op, MsgTokenExpired)
		default:
			return "", apperr.Validation(op, MsgTokenInvalid)
		}
	}
	if !strings.EqualFold(strings.TrimSpace(sub.Email), strings.TrimSpace(v.Email)) {
		return "", apperr.Validation(op, MsgEmailMismatch)
	}
	return v.Email, nil
}

// validatePayload 返回规范化后的 Content-Type
func validatePayload(op string, sub Submission) (string, error) {
	if strings.TrimSpace(sub.Name) == "" || strings.TrimSpace(sub.JobID) == "" || len(sub.Resume) == 0 {
		return "", apperr.Validation(op, MsgMissingFields)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(sub.ContentType, ";", 2)[0]))
	if contentType == "" || contentType == "application/octet-stream" {
		// 部分浏览器不给 Word 文件类型，按扩展名补全
		contentType = allowedExtensions[strings.ToLower(path.Ext(sub.Filename))]
	}
	if !allowedContentTypes[contentType] {
		return "", apperr.Validation(op, MsgInvalidFileType)
	}
	if len(sub.Resume) > constants.MaxResumeBytes {
		return "", apperr.Validation(op, MsgFileTooLarge)
	}
	return contentType, nil
}

func (s *Service) extractText(ctx context.Context, sub Submission) string {
	if s.extractor == nil {
		return ""
	}
	text, err := s.extractor.ExtractClean(ctx, sub.Resume, sub.Filename)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("同步提取简历文本失败，交给 worker 处理")
		return ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < constants.MinResumeTextLength {
		return ""
	}
	return text
}

// 补偿动作使用独立上下文，请求取消后也要执行
func (s *Service) deleteCandidate(ctx context.Context, candidateID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteCandidate(cctx, candidateID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("candidate_id", candidateID).Msg("补偿删除候选人失败")
	}
}

func (s *Service) deleteObject(ctx context.Context, ref storage.ObjectRef) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.objects.Delete(cctx, ref); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("object", ref.Bucket+"/"+ref.Path).Msg("补偿删除简历对象失败")
	}
}

// ResumeObjectPath {candidateID}/{毫秒时间戳}-{清洗后的文件名}
func ResumeObjectPath(candidateID, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", candidateID, at.UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename 只保留字母数字、点和横线，其余替换为下划线
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
