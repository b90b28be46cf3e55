package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 申请令牌状态
const (
	TokenStatusPending = "PENDING"
	TokenStatusUsed    = "USED"
	TokenStatusExpired = "EXPIRED"
)

// 候选人状态
const (
	CandidateStatusPending  = "PENDING"
	CandidateStatusApproved = "APPROVED"
	CandidateStatusRejected = "REJECTED"
)

// AI 评估状态
const (
	EvaluationStatusPending   = "PENDING"
	EvaluationStatusCompleted = "COMPLETED"
	EvaluationStatusFailed    = "FAILED"
)

// 面试会话状态，只能前进
const (
	SessionStatusPending    = "PENDING"
	SessionStatusInProgress = "IN_PROGRESS"
	SessionStatusCompleted  = "COMPLETED"
)

// 岗位状态
const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// 推荐结论
const (
	RecommendationStrong    = "STRONG_MATCH"
	RecommendationPotential = "POTENTIAL_MATCH"
	RecommendationWeak      = "WEAK_MATCH"
)

// Job 岗位信息表
type Job struct {
	JobID       string    `gorm:"type:char(36);primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"type:varchar(20);default:'open';index:idx_jobs_status" json:"status"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// ApplicationToken 一次性申请令牌
type ApplicationToken struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_application_tokens_token" json:"token"`
	Email     string     `gorm:"type:varchar(255);not null;index:idx_application_tokens_email" json:"email"`
	IssuedBy  string     `gorm:"type:varchar(255);index:idx_application_tokens_issued_by" json:"issued_by"`
	Status    string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	ExpiresAt time.Time  `gorm:"type:datetime(6);not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"type:datetime(6)" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
}

func (ApplicationToken) TableName() string {
	return "application_tokens"
}

// Candidate 候选人表，(email, job_id) 唯一
type Candidate struct {
	CandidateID     string     `gorm:"type:char(36);primaryKey" json:"id"`
	JobID           string     `gorm:"type:char(36);not null;uniqueIndex:idx_candidates_email_job,priority:2;index:idx_candidates_job_id" json:"job_id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	Email           string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_candidates_email_job,priority:1" json:"email"`
	Phone           string     `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Status          string     `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_candidates_status" json:"status"`
	CreatedAt       time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	StatusUpdatedAt *time.Time `gorm:"type:datetime(6)" json:"status_updated_at,omitempty"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// CandidateDocument 候选人上传的简历文件
type CandidateDocument struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID      string    `gorm:"type:char(36);not null;index:idx_cd_candidate_id" json:"candidate_id"`
	StorageBucket    string    `gorm:"type:varchar(100);not null" json:"storage_bucket"`
	StoragePath      string    `gorm:"type:varchar(1024);not null" json:"storage_path"`
	FileHash         string    `gorm:"type:char(64)" json:"file_hash"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	ContentType      string    `gorm:"type:varchar(100)" json:"content_type"`
	UploadedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"uploaded_at"`
}

func (CandidateDocument) TableName() string {
	return "candidate_documents"
}

// AIEvaluation 简历 AI 评估结果，每个候选人至多一行
type AIEvaluation struct {
	CandidateID    string         `gorm:"type:char(36);primaryKey" json:"candidate_id"`
	Score          int            `gorm:"type:int;not null;default:0" json:"score"`
	Recommendation string         `gorm:"type:varchar(30);not null" json:"recommendation"`
	MatchedSkills  datatypes.JSON `gorm:"type:json" json:"matched_skills"`
	MissingSkills  datatypes.JSON `gorm:"type:json" json:"missing_skills"`
	Strengths      datatypes.JSON `gorm:"type:json" json:"strengths"`
	Weaknesses     datatypes.JSON `gorm:"type:json" json:"weaknesses"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Status         string         `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_ai_eval_status" json:"status"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (AIEvaluation) TableName() string {
	return "ai_evaluations"
}

// InterviewQuestion 岗位题库，生成后不再修改
type InterviewQuestion struct {
	QuestionID       string         `gorm:"type:char(36);primaryKey" json:"id"`
	JobID            string         `gorm:"type:char(36);not null;uniqueIndex:idx_iq_job_order,priority:1" json:"job_id"`
	QuestionText     string         `gorm:"type:text;not null" json:"question_text"`
	QuestionOrder    int            `gorm:"not null;uniqueIndex:idx_iq_job_order,priority:2" json:"question_order"`
	ExpectedKeywords datatypes.JSON `gorm:"type:json" json:"expected_keywords,omitempty"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
}

func (InterviewQuestion) TableName() string {
	return "interview_questions"
}

// InterviewSession 面试会话
type InterviewSession struct {
	SessionID       string     `gorm:"type:char(36);primaryKey" json:"id"`
	CandidateID     string     `gorm:"type:char(36);not null;index:idx_is_candidate_job,priority:1" json:"candidate_id"`
	JobID           string     `gorm:"type:char(36);not null;index:idx_is_candidate_job,priority:2" json:"job_id"`
	Status          string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	AccessToken     *string    `gorm:"type:varchar(64);uniqueIndex:idx_is_access_token" json:"access_token,omitempty"`
	LastQuestionID  *string    `gorm:"type:char(36)" json:"last_question_id,omitempty"`
	DurationSeconds *int       `gorm:"type:int" json:"duration_seconds,omitempty"`
	TranscriptURL   string     `gorm:"type:varchar(1024)" json:"transcript_url,omitempty"`
	VideoURL        string     `gorm:"type:varchar(1024)" json:"video_url,omitempty"`
	CompletedAt     *time.Time `gorm:"type:datetime(6)" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// InterviewResponse 面试回答，只追加
type InterviewResponse struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:char(36);not null;index:idx_ir_session_created,priority:1" json:"session_id"`
	QuestionID     string    `gorm:"type:char(36);not null" json:"question_id"`
	AnswerText     string    `gorm:"type:text" json:"answer_text"`
	AnswerAudioURL string    `gorm:"type:varchar(1024)" json:"answer_audio_url,omitempty"`
	AnswerVideoURL string    `gorm:"type:varchar(1024)" json:"answer_video_url,omitempty"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ir_session_created,priority:2" json:"created_at"`
}

func (InterviewResponse) TableName() string {
	return "interview_responses"
}

// AIInterviewEvaluation 面试评分结果，每个会话至多一行
type AIInterviewEvaluation struct {
	SessionID           string         `gorm:"type:char(36);primaryKey" json:"session_id"`
	Score               int            `gorm:"type:int;not null;default:0" json:"score"`
	Recommendation      string         `gorm:"type:varchar(30)" json:"recommendation"`
	Summary             string         `gorm:"type:text" json:"summary"`
	MatchedSkills       datatypes.JSON `gorm:"type:json" json:"matched_skills"`
	MissingSkills       datatypes.JSON `gorm:"type:json" json:"missing_skills"`
	Strengths           datatypes.JSON `gorm:"type:json" json:"strengths"`
	AreasForImprovement datatypes.JSON `gorm:"type:json" json:"areas_for_improvement"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime" json:"updated_at"`
}

func (AIInterviewEvaluation) TableName() string {
	return "ai_interview_evaluations"
}

// ToJSON 把任意值序列化为 datatypes.JSON，nil 序列化为 null
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// MustJSON 序列化失败时返回空对象
func MustJSON(v interface{}) datatypes.JSON {
	b, err := ToJSON(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return b
}
