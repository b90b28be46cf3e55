package handler

import (
	"context"
	"encoding/base64"
	"strings"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/evaluator"
	"ai-hiring-go/internal/interview"
	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// InterviewService 由 interview.Service 实现
type InterviewService interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (*models.InterviewSession, error)
	CreateOrResume(ctx context.Context, candidateID, jobID string) (*models.InterviewSession, error)
	NextQuestion(ctx context.Context, jobID, lastQuestionID string) (*models.InterviewQuestion, error)
	SessionQuestion(ctx context.Context, sessionID string) (*models.InterviewQuestion, error)
	RecordResponse(ctx context.Context, a interview.Answer) (*models.InterviewResponse, error)
	Complete(ctx context.Context, sessionID string, durationSeconds *int) (*interview.Completion, error)
	UploadMedia(ctx context.Context, m interview.MediaUpload) (*interview.MediaResult, error)
}

// Regrader 由 grading.Orchestrator 实现
type Regrader interface {
	Regrade(ctx context.Context, sessionID string) (*evaluator.InterviewGrade, error)
}

// QuestionSpeaker 把题目读成 mp3，由 agent.Speaker 实现
type QuestionSpeaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// InterviewHandler 候选人面试流程
type InterviewHandler struct {
	interviews InterviewService
	grader     Regrader
	speaker    QuestionSpeaker
}

func NewInterviewHandler(svc InterviewService, grader Regrader) *InterviewHandler {
	return &InterviewHandler{interviews: svc, grader: grader}
}

// WithSpeaker 启用题目朗读，/question 响应带 audio_base64
func (h *InterviewHandler) WithSpeaker(s QuestionSpeaker) *InterviewHandler {
	h.speaker = s
	return h
}

type startRequest struct {
	CandidateID string `json:"candidate_id" validate:"required"`
	JobID       string `json:"job_id" validate:"required"`
}

type questionRequest struct {
	SessionID      string `json:"session_id"`
	JobID          string `json:"job_id" validate:"required_without=SessionID"`
	LastQuestionID string `json:"last_question_id"`
}

type answerRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	QuestionID     string `json:"question_id" validate:"required"`
	AnswerText     string `json:"answer_text"`
	AnswerVideoURL string `json:"answer_video_url"`
}

type completeRequest struct {
	SessionID       string `json:"session_id" validate:"required"`
	DurationSeconds *int   `json:"duration_seconds" validate:"omitempty,min=0"`
}

// Validate GET /api/interview/validate/:token
func (h *InterviewHandler) Validate(ctx context.Context, c *app.RequestContext) {
	session, err := h.interviews.ValidateAccessToken(ctx, c.Param("token"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, session)
}

// Start POST /api/interview/start
func (h *InterviewHandler) Start(ctx context.Context, c *app.RequestContext) {
	var req startRequest
	if err := bindJSON(c, "interview.Start", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	session, err := h.interviews.CreateOrResume(ctx, req.CandidateID, req.JobID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"session": session})
}

// Question POST /api/interview/question。带 session_id 时按服务端进度出题
func (h *InterviewHandler) Question(ctx context.Context, c *app.RequestContext) {
	var req questionRequest
	if err := bindJSON(c, "interview.Question", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	var (
		q   *models.InterviewQuestion
		err error
	)
	if req.SessionID != "" {
		q, err = h.interviews.SessionQuestion(ctx, req.SessionID)
	} else {
		q, err = h.interviews.NextQuestion(ctx, req.JobID, req.LastQuestionID)
	}
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if q == nil {
		c.JSON(consts.StatusOK, utils.H{"question": nil, "done": true})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"question": q, "audio_base64": h.questionAudio(ctx, q), "done": false})
}

// questionAudio 朗读失败不影响出题，返回 nil 由前端改为文字展示
func (h *InterviewHandler) questionAudio(ctx context.Context, q *models.InterviewQuestion) any {
	if h.speaker == nil {
		return nil
	}
	audio, err := h.speaker.Speak(ctx, q.QuestionText)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("question_id", q.QuestionID).Msg("题目语音合成失败")
		return nil
	}
	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio)
}

// Answer POST /api/interview/answer，JSON 或带 audio_chunk 的 multipart
func (h *InterviewHandler) Answer(ctx context.Context, c *app.RequestContext) {
	const op = "interview.Answer"
	var a interview.Answer
	if strings.HasPrefix(string(c.ContentType()), "multipart/form-data") {
		a = interview.Answer{
			SessionID:      c.PostForm("session_id"),
			QuestionID:     c.PostForm("question_id"),
			AnswerText:     c.PostForm("answer_text"),
			AnswerVideoURL: c.PostForm("answer_video_url"),
		}
		if fh, err := c.FormFile("audio_chunk"); err == nil {
			data, err := readUpload(fh, interview.MaxMediaBytes)
			if err != nil {
				writeError(ctx, c, apperr.Dependency(op, "Failed to read audio", err))
				return
			}
			a.Audio = data
			a.AudioFilename = fh.Filename
		}
	} else {
		var req answerRequest
		if err := bindJSON(c, op, &req); err != nil {
			writeError(ctx, c, err)
			return
		}
		a = interview.Answer{
			SessionID:      req.SessionID,
			QuestionID:     req.QuestionID,
			AnswerText:     req.AnswerText,
			AnswerVideoURL: req.AnswerVideoURL,
		}
	}

	resp, err := h.interviews.RecordResponse(ctx, a)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"success": true, "transcript": resp.AnswerText, "response": resp})
}

// Complete POST /api/interview/complete。评分失败时仍返回 200，success 为 false
func (h *InterviewHandler) Complete(ctx context.Context, c *app.RequestContext) {
	var req completeRequest
	if err := bindJSON(c, "interview.Complete", &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.interviews.Complete(ctx, req.SessionID, req.DurationSeconds)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if res.GradingError != "" {
		c.JSON(consts.StatusOK, utils.H{"success": false, "session": res.Session, "grading_error": res.GradingError})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true, "session": res.Session, "grade": res.Grade})
}

// UploadMedia POST /api/interview/upload-media (multipart: session_id, question_id, type, file)
func (h *InterviewHandler) UploadMedia(ctx context.Context, c *app.RequestContext) {
	const op = "interview.UploadMedia"
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(ctx, c, apperr.Validation(op, "file is required"))
		return
	}
	data, err := readUpload(fh, interview.MaxMediaBytes)
	if err != nil {
		writeError(ctx, c, apperr.Dependency(op, "Failed to read upload", err))
		return
	}
	kind := interview.MediaKind(strings.ToLower(strings.TrimSpace(c.PostForm("type"))))
	if kind == "" {
		kind = interview.MediaVideo
	}
	res, err := h.interviews.UploadMedia(ctx, interview.MediaUpload{
		SessionID:   c.PostForm("session_id"),
		QuestionID:  c.PostForm("question_id"),
		Kind:        kind,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"success": true, "url": res.URL, "media": res})
}

// Regrade POST /api/interview/:sessionId/grade
func (h *InterviewHandler) Regrade(ctx context.Context, c *app.RequestContext) {
	grade, err := h.grader.Regrade(ctx, c.Param("sessionId"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true, "grade": grade})
}
