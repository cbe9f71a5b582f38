package memory

import "errors"

// 记忆引擎的哨兵错误，使用 errors.Is 判定.
var (
	// ErrDurability 表示消息已在内存中生效，但持久化失败.
	ErrDurability = errors.New("memory: durability failure")
	// ErrIndexUnavailable 表示检索索引不可用，调用方应降级为文本检索.
	ErrIndexUnavailable = errors.New("memory: index unavailable")
	// ErrUnknownBackend 表示无法识别的后端名称.
	ErrUnknownBackend = errors.New("memory: unknown backend")
	// ErrClosed 表示后端已关闭.
	ErrClosed = errors.New("memory: backend closed")
)
