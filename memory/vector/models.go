package vector

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
)

// messageRecord 为消息表的一行.
type messageRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Persona   string    `gorm:"size:255;not null;uniqueIndex:idx_vector_messages_persona_seq,priority:1"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_vector_messages_persona_seq,priority:2"`
	Speaker   string    `gorm:"size:255;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
	Metadata  string    `gorm:"type:text"`
}

func (messageRecord) TableName() string { return "vector_messages" }

// embeddingRecord 为嵌入副表的一行，与消息一一对应.
type embeddingRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Persona    string `gorm:"size:255;not null;uniqueIndex:idx_vector_embeddings_persona_seq,priority:1"`
	MessageSeq int    `gorm:"not null;uniqueIndex:idx_vector_embeddings_persona_seq,priority:2"`
	Dimension  int    `gorm:"not null"`
	Vector     []byte `gorm:"not null"`
}

func (embeddingRecord) TableName() string { return "vector_embeddings" }

// toMessage 还原消息；元数据无法解析时记录告警并置空，消息本身照常返回
func (r messageRecord) toMessage(logger *zap.Logger) memory.Message {
	msg := memory.Message{
		ID:        r.Seq,
		Speaker:   r.Speaker,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &msg.Metadata); err != nil {
			logger.Warn("unreadable message metadata, dropping it", zap.Int("seq", r.Seq), zap.Error(err))
			msg.Metadata = nil
		}
	}
	return msg
}

func newMessageRecord(persona string, msg memory.Message) (messageRecord, error) {
	rec := messageRecord{
		Persona:   persona,
		Seq:       msg.ID,
		Speaker:   msg.Speaker,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return rec, err
		}
		rec.Metadata = string(data)
	}
	return rec, nil
}
