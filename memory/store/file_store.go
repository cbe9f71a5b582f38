package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
)

// document 为对话日志的磁盘格式.
type document struct {
	CloneName           string           `json:"clone_name"`
	LastUpdated         time.Time        `json:"last_updated"`
	TotalMessages       int              `json:"total_messages"`
	ConversationHistory []memory.Message `json:"conversation_history"`
}

// FileMessageStore 是基于 JSON 文件的 MessageStore.
// 写入先落到临时文件再重命名覆盖日志.
type FileMessageStore struct {
	mu        sync.RWMutex
	log       messageLog
	path      string
	persona   string
	saveEvery int
	unsaved   int
	closed    bool
	logger    *zap.Logger
}

// NewFileMessageStore 打开（或创建）config.Persona 的日志.
// 文件损坏时记录日志并以空日志替换.
func NewFileMessageStore(config Config, logger *zap.Logger) (*FileMessageStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}

	saveEvery := config.SaveEvery
	if saveEvery < 1 {
		saveEvery = 1
	}

	s := &FileMessageStore{
		log:       messageLog{now: config.clock()},
		path:      LogPath(config.BaseDir, config.Persona),
		persona:   config.Persona,
		saveEvery: saveEvery,
		logger:    logger.With(zap.String("component", "message_store"), zap.String("persona", config.Persona)),
	}
	s.loadFromDisk()
	return s, nil
}

// LogPath 返回人设的对话日志路径.
func LogPath(baseDir, persona string) string {
	return filepath.Join(baseDir, memory.FileSafeName(persona)+"_memory.json")
}

func (s *FileMessageStore) loadFromDisk() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("failed to read conversation log, starting empty", zap.Error(err))
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt conversation log, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.log.reset(doc.ConversationHistory)
	s.logger.Debug("conversation log loaded", zap.Int("messages", len(doc.ConversationHistory)))
}

func (s *FileMessageStore) saveLocked() error {
	doc := document{
		CloneName:           s.persona,
		LastUpdated:         time.Now(),
		TotalMessages:       len(s.log.messages),
		ConversationHistory: s.log.messages,
	}
	if doc.ConversationHistory == nil {
		doc.ConversationHistory = []memory.Message{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return err
	}
	s.unsaved = 0
	return nil
}

// Append 添加消息，每 SaveEvery 条写一次日志.
func (s *FileMessageStore) Append(_ context.Context, speaker, content string, metadata map[string]any) (memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.log.append(speaker, content, metadata)
	s.unsaved++
	if s.closed || s.unsaved < s.saveEvery {
		return msg, nil
	}
	if err := s.saveLocked(); err != nil {
		return msg, fmt.Errorf("save conversation log: %w: %w", memory.ErrDurability, err)
	}
	return msg, nil
}

func (s *FileMessageStore) Recent(n int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.recent(n)
}

func (s *FileMessageStore) BySpeaker(speaker string, n int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.bySpeaker(speaker, n)
}

func (s *FileMessageStore) Search(query string, max int) []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.search(query, max)
}

func (s *FileMessageStore) Get(id int) (memory.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.get(id)
}

func (s *FileMessageStore) All() []memory.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.all()
}

func (s *FileMessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log.messages)
}

func (s *FileMessageStore) Stats() memory.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.stats()
}

// Clear 清空日志并删除文件.
func (s *FileMessageStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.reset(nil)
	s.unsaved = 0
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove conversation log: %w", err)
	}
	return nil
}

// Save 写出未保存的消息.
func (s *FileMessageStore) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsaved == 0 {
		return nil
	}
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("save conversation log: %w: %w", memory.ErrDurability, err)
	}
	return nil
}

// Close 刷新未保存的消息.
func (s *FileMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.unsaved == 0 {
		return nil
	}
	return s.saveLocked()
}

var _ MessageStore = (*FileMessageStore)(nil)
