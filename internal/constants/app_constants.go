package constants

const (
	// MaxResumeBytes 简历上传上限
	MaxResumeBytes = 5 * 1024 * 1024

	// MinResumeTextLength 简历文本少于该长度视为提取失败
	MinResumeTextLength = 50

	// MaxErrorMessageLength 评估失败时错误信息的截断长度
	MaxErrorMessageLength = 1000

	// InterviewQuestionCount 每个岗位生成的面试题数量
	InterviewQuestionCount = 4

	// EvaluationEventType 评估任务事件类型，同时作为 outbox 的 event_type
	EvaluationEventType = "ai-evaluation"

	// PendingEvaluationSummary 排队中评估的占位摘要
	PendingEvaluationSummary = "Evaluation queued..."

	// FailedEvaluationSummary 评估失败的摘要
	FailedEvaluationSummary = "Evaluation failed"

	// DefaultJobContext 找不到岗位时给评分模型的上下文
	DefaultJobContext = "General Software Engineering Role"
)
