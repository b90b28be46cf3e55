package constants

import "time"

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// LockModulePrefix 分布式锁模块
	LockModulePrefix = "lock"
	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"

	// EntityQuestionBank 题库实体
	EntityQuestionBank = "question_bank"
	// EntityContext 岗位上下文实体
	EntityContext = "context"

	// KeyQuestionBankLock 题库生成锁 (STRING)
	// 格式: app:lock:question_bank:{jobID}
	KeyQuestionBankLock = AppPrefix + ":" + LockModulePrefix + ":" + EntityQuestionBank + ":%s"

	// KeyJobContext 岗位标题与描述缓存 (STRING, JSON)
	// 格式: app:job:context:{jobID}
	KeyJobContext = AppPrefix + ":" + JobModulePrefix + ":" + EntityContext + ":%s"

	// JobContextTTL 岗位上下文缓存时长
	JobContextTTL = 10 * time.Minute
)
