package storage

import "time"

// EvaluationJobMessage 简历评估任务
type EvaluationJobMessage struct {
	CandidateID string `json:"candidate_id"`
	// JobID 旧消息可能缺失，worker 会回查候选人记录
	JobID      string `json:"job_id,omitempty"`
	ResumePath string `json:"resume_path"`
	// StorageLocator 对象的桶与直连地址
	StorageBucket string `json:"storage_bucket"`
	StorageURL    string `json:"storage_url,omitempty"`
	// ResumeText 提交时同步提取的文本，为空时 worker 重新下载提取
	ResumeText     string    `json:"resume_text,omitempty"`
	OriginalName   string    `json:"original_name,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	TimeoutSeconds int       `json:"timeout_seconds,omitempty"`
}
