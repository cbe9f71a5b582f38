package store

import (
	"context"
	"sync"

	"github.com/BaSui01/aiclone/memory"
)

// MemoryMessageStore 是纯内存的 MessageStore，用于基准测试与测试.
type MemoryMessageStore struct {
	mu  sync.RWMutex
	log messageLog
}

// NewMemoryMessageStore 创建内存消息存储.
func NewMemoryMessageStore(config Config) *MemoryMessageStore {
	return &MemoryMessageStore{log: messageLog{now: config.clock()}}
}

// Append 向日志添加消息.
func (s *MemoryMessageStore) Append(_ context.Context, speaker, content string, metadata map[string]any) (memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.append(speaker, content, metadata), nil
}

func (s *MemoryMessageStore) Recent(n int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.recent(n)
}

func (s *MemoryMessageStore) BySpeaker(speaker string, n int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.bySpeaker(speaker, n)
}

func (s *MemoryMessageStore) Search(query string, max int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.search(query, max)
}

func (s *MemoryMessageStore) Get(id int) (memory.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.get(id)
}

func (s *MemoryMessageStore) All() []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.all()
}

func (s *MemoryMessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log.messages)
}

func (s *MemoryMessageStore) Stats() memory.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.stats()
}

func (s *MemoryMessageStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.reset(nil)
	return nil
}

func (s *MemoryMessageStore) Save(context.Context) error { return nil }

func (s *MemoryMessageStore) Close() error { return nil }

var _ MessageStore = (*MemoryMessageStore)(nil)
