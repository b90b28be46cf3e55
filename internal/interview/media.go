package interview

import (
	"context"
	"fmt"
	"path"
	"strings"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/logger"
)

// MediaKind 上传的面试媒体类型
type MediaKind string

const (
	MediaVideo      MediaKind = "video"
	MediaAudio      MediaKind = "audio"
	MediaTranscript MediaKind = "transcript"
)

// MaxMediaBytes 单个媒体文件上限
const MaxMediaBytes = 200 * 1024 * 1024

// fullSessionMarker 不属于某道题的整场录制
const fullSessionMarker = "FULL_SESSION_RECORDING"

// MediaUpload 一次媒体上传；QuestionID 为空表示整场
type MediaUpload struct {
	SessionID   string
	QuestionID  string
	Kind        MediaKind
	Filename    string
	ContentType string
	Data        []byte
}

// MediaResult 上传后的对象位置
type MediaResult struct {
	Kind   MediaKind `json:"kind"`
	Bucket string    `json:"bucket"`
	Path   string    `json:"path"`
	URL    string    `json:"url"`
}

// UploadMedia 写入录像、音频或转写稿。只有整场录像和整场转写稿会记到会话上，评分优先读取整场转写稿
func (s *Service) UploadMedia(ctx context.Context, m MediaUpload) (*MediaResult, error) {
	const op = "interview.UploadMedia"
	if strings.TrimSpace(m.SessionID) == "" {
		return nil, apperr.Validation(op, "session_id is required")
	}
	if len(m.Data) == 0 {
		return nil, apperr.Validation(op, "file is required")
	}
	if len(m.Data) > MaxMediaBytes {
		return nil, apperr.Validation(op, "File is too large")
	}
	if s.objects == nil {
		return nil, apperr.Dependency(op, "Media storage is not configured", nil)
	}
	if _, err := s.getSession(ctx, op, m.SessionID); err != nil {
		return nil, err
	}

	var bucket, objectPath, contentType string
	switch m.Kind {
	case MediaVideo:
		bucket = s.cfg.MediaBucket
		objectPath = MediaObjectPath(m.SessionID, m.QuestionID, s.newID(), m.Filename, ".webm")
		contentType = orDefault(m.ContentType, "video/webm")
	case MediaAudio:
		if m.QuestionID == "" {
			return nil, apperr.Validation(op, "question_id is required for audio")
		}
		bucket = s.cfg.MediaBucket
		objectPath = MediaObjectPath(m.SessionID, m.QuestionID, s.newID(), m.Filename, ".webm")
		contentType = orDefault(m.ContentType, AudioContentType(m.Filename))
	case MediaTranscript:
		bucket = s.cfg.TranscriptsBucket
		objectPath = TranscriptObjectPath(m.SessionID, m.QuestionID)
		contentType = "application/pdf"
	default:
		return nil, apperr.Validation(op, "type must be one of video, audio, transcript")
	}

	put, err := s.objects.Put(ctx, bucket, objectPath, m.Data, contentType)
	if err != nil {
		return nil, apperr.Dependency(op, fmt.Sprintf("Failed to upload %s", m.Kind), err)
	}

	var videoRef, transcriptRef string
	switch {
	case m.Kind == MediaVideo && m.QuestionID == "":
		videoRef = put.Path
	case m.Kind == MediaTranscript && m.QuestionID == "":
		// 单题转写稿不能代替整场转写稿参与评分
		transcriptRef = put.Path
	}
	if videoRef != "" || transcriptRef != "" {
		if err := s.store.SetInterviewMedia(ctx, m.SessionID, videoRef, transcriptRef); err != nil {
			apperr.Warn(ctx, "interview.SetMedia", err)
		}
	}

	logger.Ctx(ctx).Info().Str("session_id", m.SessionID).Str("kind", string(m.Kind)).
		Str("object", put.Bucket+"/"+put.Path).Int("bytes", len(m.Data)).Msg("面试媒体已上传")
	return &MediaResult{Kind: m.Kind, Bucket: put.Bucket, Path: put.Path, URL: put.URL}, nil
}

// MediaObjectPath {session}_{question}_{id}{ext}，question 为空时使用整场标记
func MediaObjectPath(sessionID, questionID, id, filename, defaultExt string) string {
	if questionID == "" {
		questionID = fullSessionMarker
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = defaultExt
	}
	return fmt.Sprintf("%s_%s_%s%s", sessionID, questionID, id, ext)
}

// TranscriptObjectPath {session}/{question}.pdf，question 为空时为整场转写稿
func TranscriptObjectPath(sessionID, questionID string) string {
	if questionID == "" {
		questionID = "TRANSCRIPT"
	}
	return fmt.Sprintf("%s/%s.pdf", sessionID, questionID)
}

// AudioContentType 按扩展名推断音频类型
func AudioContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/webm"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
