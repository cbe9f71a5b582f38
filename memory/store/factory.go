package store

import (
	"fmt"

	"go.uber.org/zap"
)

// NewMessageStore 按 config.Type 创建 MessageStore.
func NewMessageStore(config Config, logger *zap.Logger) (MessageStore, error) {
	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryMessageStore(config), nil
	case StoreTypeFile, "":
		return NewFileMessageStore(config, logger)
	default:
		return nil, fmt.Errorf("unsupported message store type: %s", config.Type)
	}
}
