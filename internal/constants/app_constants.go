package constants

import "time"

const (
	// SessionHeader 携带会话令牌的请求头
	SessionHeader = "X-Session-Token"

	// ImportTextObjectPrefix 导入原文在对象存储中的前缀
	ImportTextObjectPrefix = "imports/"

	// DefaultSessionCacheTTL 会话缓存默认过期时间
	DefaultSessionCacheTTL = 10 * time.Minute

	// RepairLockTTL 批量修复任务锁的过期时间
	RepairLockTTL = 30 * time.Minute
)
