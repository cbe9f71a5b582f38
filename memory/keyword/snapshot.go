package keyword

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BaSui01/aiclone/memory"
)

// snapshot 为索引的磁盘格式.
type snapshot struct {
	CloneName             string                       `json:"clone_name"`
	LastUpdated           time.Time                    `json:"last_updated"`
	KeywordIndex          map[string][]int             `json:"keyword_index"`
	TopicIndex            map[string][]int             `json:"topic_index"`
	SpeakerKeywords       map[string]map[string]int    `json:"speaker_keywords"`
	ConversationSummaries []memory.ConversationSummary `json:"conversation_summaries"`
	TotalIndexed          int                          `json:"total_indexed"`
	// LastIndexedDigest 为最后一条已索引消息的指纹，日志被清空重写后不再匹配
	LastIndexedDigest string `json:"last_indexed_digest"`
}

// SnapshotPath 返回人设的索引快照路径.
func SnapshotPath(dataDir, persona string) string {
	return filepath.Join(dataDir, "keyword_index", memory.FileSafeName(persona)+"_index.json")
}

// messageDigest 由 ID、发言人、内容与时间戳计算消息指纹.
func messageDigest(msg memory.Message) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%s\x00%d", msg.ID, msg.Speaker, msg.Content, msg.Timestamp.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// consistentWith 检查快照只引用日志中已存在的消息，且与日志是同一段历史.
func (s *snapshot) consistentWith(messages []memory.Message) bool {
	if s.TotalIndexed < 0 || s.TotalIndexed > len(messages) {
		return false
	}
	if s.TotalIndexed > 0 && s.LastIndexedDigest != messageDigest(messages[s.TotalIndexed-1]) {
		return false
	}
	if s.KeywordIndex == nil || s.TopicIndex == nil || s.SpeakerKeywords == nil {
		return false
	}
	for _, index := range []map[string][]int{s.KeywordIndex, s.TopicIndex} {
		for _, ids := range index {
			for _, id := range ids {
				if id < 0 || id >= s.TotalIndexed {
					return false
				}
			}
		}
	}
	return true
}

// readSnapshot 在没有快照时返回 nil, nil.
func (x *Index) readSnapshot() (*snapshot, error) {
	if x.snapshotPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(x.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keyword snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode keyword snapshot: %w", err)
	}
	return &snap, nil
}

func (x *Index) saveSnapshotLocked() error {
	if x.snapshotPath == "" {
		return nil
	}

	snap := snapshot{
		CloneName:             x.cfg.Persona,
		LastUpdated:           x.cfg.Now(),
		KeywordIndex:          x.keywordIndex,
		TopicIndex:            x.topicIndex,
		SpeakerKeywords:       x.speakerKeywords,
		ConversationSummaries: x.summaries,
		TotalIndexed:          len(x.msgKeywords),
	}
	if snap.TotalIndexed > 0 {
		last, ok := x.store.Get(snap.TotalIndexed - 1)
		if !ok {
			return fmt.Errorf("message %d missing from log", snap.TotalIndexed-1)
		}
		snap.LastIndexedDigest = messageDigest(last)
	}
	if snap.ConversationSummaries == nil {
		snap.ConversationSummaries = []memory.ConversationSummary{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(x.snapshotPath), 0o755); err != nil {
		return err
	}
	tempPath := x.snapshotPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, x.snapshotPath)
}

func (x *Index) removeSnapshot() error {
	if x.snapshotPath == "" {
		return nil
	}
	if err := os.Remove(x.snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove keyword snapshot: %w", err)
	}
	return nil
}
