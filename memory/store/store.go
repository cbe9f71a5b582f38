// Package store 提供各记忆后端共享的只追加对话日志.
package store

import (
	"context"
	"time"

	"github.com/BaSui01/aiclone/memory"
)

// StoreType 选择 MessageStore 实现.
type StoreType string

const (
	// StoreTypeMemory 只在进程内存中保存日志
	StoreTypeMemory StoreType = "memory"
	// StoreTypeFile 将日志持久化为 JSON 文档
	StoreTypeFile StoreType = "file"
)

// MessageStore 是按人设划分的只追加对话日志.
//
// Append 总会把消息保留在内存中. 非 nil 错误只表示消息未能落盘，
// 并包装 memory.ErrDurability.
type MessageStore interface {
	Append(ctx context.Context, speaker, content string, metadata map[string]any) (memory.Message, error)
	Recent(n int) []memory.Message
	BySpeaker(speaker string, n int) []memory.Message
	Search(query string, max int) []memory.Message
	Get(id int) (memory.Message, bool)
	All() []memory.Message
	Len() int
	Stats() memory.Stats

	Clear(ctx context.Context) error
	Save(ctx context.Context) error
	Close() error
}

// Config 配置 MessageStore.
type Config struct {
	Type StoreType `json:"type" yaml:"type"`

	// Persona 为日志名，同时是文件名主干
	Persona string `json:"persona" yaml:"persona"`

	// BaseDir 为文件日志所在目录
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// SaveEvery 每追加这么多条写一次文件，小于 1 视为 1
	SaveEvery int `json:"save_every" yaml:"save_every"`

	// Now 覆盖时钟，供测试使用
	Now func() time.Time `json:"-" yaml:"-"`
}

// DefaultConfig 返回基于文件的配置.
func DefaultConfig(persona, baseDir string) Config {
	return Config{
		Type:      StoreTypeFile,
		Persona:   persona,
		BaseDir:   baseDir,
		SaveEvery: 1,
	}
}

func (c Config) clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}
