package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// AuthModulePrefix 会话模块
	AuthModulePrefix = "auth"
	// ResumeModulePrefix 简历模块
	ResumeModulePrefix = "resume"

	// EntitySession 会话实体
	EntitySession = "session"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeySession 会话缓存 (STRING, JSON)
	// 格式: app:auth:session:{sha256(token)}
	KeySession = AppPrefix + ":" + AuthModulePrefix + ":" + EntitySession + ":%s"

	// KeyRepairLock 批量修复任务的互斥锁 (STRING)
	// 格式: app:resume:lock:repair
	KeyRepairLock = AppPrefix + ":" + ResumeModulePrefix + ":" + EntityLock + ":repair"
)
