// Package vector 实现向量相似度记忆后端.
//
// 消息与嵌入向量存放在两张按人设分区的 gorm 表中. 打开时加载的 FlatIndex
// 负责相似度查询，不可用时退回子串检索.
package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/aiclone/internal/database"
	"github.com/BaSui01/aiclone/internal/metrics"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/embed"
)

// Config 配置 Store.
type Config struct {
	Persona string

	// Driver 为 sqlite、postgres 或 mysql，sqlite 的 DSN 为文件路径
	Driver string
	DSN    string

	// BatchSize 为触发刷新的待写消息数
	BatchSize int

	// DisableIndex 强制相似度查询走子串检索
	DisableIndex bool

	// FlushRetries 限定锁冲突时刷新事务的重试次数
	FlushRetries int

	// Pool 覆盖 postgres 与 mysql 的连接上限，sqlite 始终使用单连接
	Pool database.PoolConfig

	// Collector 接收事务耗时，可选
	Collector *metrics.Collector

	Now func() time.Time
}

// DefaultPath 返回 dataDir 下人设独立的 sqlite 文件.
func DefaultPath(dataDir, persona string) string {
	return filepath.Join(dataDir, "vector_memory", memory.FileSafeName(persona)+"_vectors.db")
}

type pendingMessage struct {
	msg    memory.Message
	vector []float32
}

// Store 是向量记忆后端.
type Store struct {
	mu       sync.Mutex
	cfg      Config
	persona  string
	pool     *database.PoolManager
	embedder embed.Embedder
	index    Index
	nextSeq  int
	pending  []pendingMessage
	searches int64
	closed   bool
	now      func() time.Time
	logger   *zap.Logger
}

// Open 打开（或创建）cfg.Persona 的存储.
// 无法迁移的 sqlite 文件会被移到一旁并重建.
func Open(ctx context.Context, cfg Config, embedder embed.Embedder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Driver == "" {
		cfg.Driver = database.DriverSQLite
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushRetries < 1 {
		cfg.FlushRetries = 3
	}
	if embedder == nil {
		embedder = embed.NewCachedEmbedder(embed.NewHashEmbedder(embed.DefaultDimension), 10000)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		cfg:      cfg,
		persona:  cfg.Persona,
		embedder: embedder,
		now:      now,
		logger:   logger.With(zap.String("component", "vector_memory"), zap.String("persona", cfg.Persona)),
	}

	pool, err := s.openPool(ctx)
	if err != nil && cfg.Driver == database.DriverSQLite && fileExists(cfg.DSN) {
		aside := fmt.Sprintf("%s.corrupt-%d", cfg.DSN, now().Unix())
		s.logger.Warn("vector database unusable, starting fresh", zap.String("moved_to", aside), zap.Error(err))
		if renameErr := os.Rename(cfg.DSN, aside); renameErr == nil {
			pool, err = s.openPool(ctx)
		}
	}
	if err != nil {
		return nil, err
	}
	s.pool = pool

	if err := s.loadSequence(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	if !cfg.DisableIndex {
		index, err := s.buildIndex(ctx)
		if err != nil {
			s.logger.Warn("vector index unavailable, falling back to text search", zap.Error(err))
		} else {
			s.index = index
		}
	}

	s.logger.Debug("vector store opened",
		zap.String("driver", cfg.Driver),
		zap.Int("messages", s.nextSeq),
		zap.Bool("index_available", s.index != nil),
	)
	return s, nil
}

func (s *Store) openPool(ctx context.Context) (*database.PoolManager, error) {
	db, err := database.Open(s.cfg.Driver, s.cfg.DSN, s.logger)
	if err != nil {
		return nil, err
	}

	poolCfg := database.DefaultPoolConfig()
	if s.cfg.Pool.MaxOpenConns > 0 {
		poolCfg = s.cfg.Pool
	}
	poolCfg.HealthCheckInterval = 0
	if s.cfg.Driver == database.DriverSQLite {
		poolCfg = database.SQLitePoolConfig("vector")
	}
	poolCfg.Name = "vector"

	pool, err := database.NewPoolManager(db, poolCfg, s.logger, database.WithCollector(s.cfg.Collector))
	if err != nil {
		return nil, err
	}
	if err := pool.DB().WithContext(ctx).AutoMigrate(&messageRecord{}, &embeddingRecord{}); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate vector tables: %w", err)
	}
	return pool, nil
}

func (s *Store) loadSequence(ctx context.Context) error {
	var last messageRecord
	result := s.db(ctx).Order("seq DESC").Limit(1).Find(&last)
	if result.Error != nil {
		return fmt.Errorf("load message sequence: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.nextSeq = last.Seq + 1
	}
	return nil
}

func (s *Store) buildIndex(ctx context.Context) (Index, error) {
	index := NewFlatIndex(s.embedder.Dimension())

	var rows []embeddingRecord
	err := s.db(ctx).
		FindInBatches(&rows, 500, func(tx *gorm.DB, batch int) error {
			for _, row := range rows {
				vec, err := embed.DecodeVector(row.Vector)
				if err != nil || len(vec) != index.dimension {
					s.logger.Warn("skipping unreadable embedding", zap.Int("seq", row.MessageSeq))
					continue
				}
				if err := index.Add(row.MessageSeq, vec); err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	return index, nil
}

func (s *Store) Kind() memory.Kind { return memory.KindVector }

func (s *Store) Capabilities() memory.Capabilities {
	return memory.Capabilities{SimilaritySearch: true}
}

// AddMessage 分配下一个 id，计算嵌入并将消息入队.
// 嵌入失败只记录日志，消息照常保存.
func (s *Store) AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, memory.ErrClosed
	}

	msg := memory.Message{
		ID:        s.nextSeq,
		Speaker:   speaker,
		Content:   content,
		Timestamp: s.now(),
		Metadata:  metadata,
	}
	s.nextSeq++

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Warn("embedding failed, storing message without vector", zap.Int("id", msg.ID), zap.Error(err))
		vec = nil
	}
	s.pending = append(s.pending, pendingMessage{msg: msg, vector: vec})

	if len(s.pending) >= s.cfg.BatchSize {
		if err := s.flushLocked(ctx); err != nil {
			return msg.ID, fmt.Errorf("%w: %w", memory.ErrDurability, err)
		}
	}
	return msg.ID, nil
}

// flushLocked 在一个事务内写出待写消息，失败时整批保持待写，由下次刷新重试.
func (s *Store) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending

	// 向量写入失败的消息只保留消息行，不进入索引
	unindexed := make(map[int]bool)
	err := s.pool.WithTransactionRetry(ctx, s.cfg.FlushRetries, func(tx *gorm.DB) error {
		clear(unindexed)
		for _, p := range batch {
			rec, err := newMessageRecord(s.persona, p.msg)
			if err != nil {
				return fmt.Errorf("encode metadata for message %d: %w", p.msg.ID, err)
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			if p.vector == nil {
				continue
			}
			emb := embeddingRecord{
				Persona:    s.persona,
				MessageSeq: p.msg.ID,
				Dimension:  len(p.vector),
				Vector:     embed.EncodeVector(p.vector),
			}
			// 保存点隔离向量写入，失败时回滚到保存点，消息行照常提交
			err = tx.Transaction(func(etx *gorm.DB) error {
				return etx.Create(&emb).Error
			})
			if err != nil {
				s.logger.Warn("embedding write failed, message stored without vector",
					zap.Int("id", p.msg.ID), zap.Error(err))
				unindexed[p.msg.ID] = true
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("vector flush failed, keeping batch pending", zap.Int("pending", len(batch)), zap.Error(err))
		return err
	}

	s.pending = nil
	if s.index != nil {
		for _, p := range batch {
			if p.vector == nil || unindexed[p.msg.ID] {
				continue
			}
			if err := s.index.Add(p.msg.ID, p.vector); err != nil {
				s.logger.Warn("failed to index message", zap.Int("id", p.msg.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// flushForRead 在读取前刷新，失败只记录日志，待写消息合并进结果.
func (s *Store) flushForRead(ctx context.Context) {
	_ = s.flushLocked(ctx)
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx).Where("persona = ?", s.persona)
}

// Recent 按时间顺序返回最后 n 条消息.
func (s *Store) Recent(ctx context.Context, n int) ([]memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, memory.ErrClosed
	}
	if n <= 0 {
		return []memory.Message{}, nil
	}
	s.flushForRead(ctx)

	var rows []messageRecord
	if err := s.db(ctx).Order("seq DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return s.withPending(chronological(rows, s.logger), n, func(memory.Message) bool { return true }), nil
}

// BySpeaker 按时间顺序返回 speaker 的最后 n 条消息.
func (s *Store) BySpeaker(ctx context.Context, speaker string, n int) ([]memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, memory.ErrClosed
	}
	if n <= 0 {
		return []memory.Message{}, nil
	}
	s.flushForRead(ctx)

	var rows []messageRecord
	if err := s.db(ctx).Where("speaker = ?", speaker).Order("seq DESC").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query speaker messages: %w", err)
	}
	return s.withPending(chronological(rows, s.logger), n, func(m memory.Message) bool { return m.Speaker == speaker }), nil
}

// withPending 追加匹配的未刷新消息并保留最后 n 条.
func (s *Store) withPending(msgs []memory.Message, n int, match func(memory.Message) bool) []memory.Message {
	for _, p := range s.pending {
		if match(p.msg) {
			msgs = append(msgs, p.msg)
		}
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

// Search 等同 SimilaritySearch.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	return s.SimilaritySearch(ctx, query, limit)
}

// SimilaritySearch 返回与 query 最近的消息，similarity_score = 1 - 余弦距离.
// 没有可用索引时退回子串检索，得分为 memory.TextSearchScore.
func (s *Store) SimilaritySearch(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, memory.ErrClosed
	}
	if limit <= 0 {
		return []memory.SearchResult{}, nil
	}
	s.flushForRead(ctx)

	results, err := s.vectorSearchLocked(ctx, query, limit)
	if err == nil {
		s.searches++
		return results, nil
	}
	if !errors.Is(err, memory.ErrIndexUnavailable) {
		s.logger.Warn("vector search failed, falling back to text search", zap.Error(err))
	}
	return s.textSearchLocked(ctx, query, limit)
}

func (s *Store) vectorSearchLocked(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if s.index == nil {
		return nil, memory.ErrIndexUnavailable
	}

	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	neighbors, err := s.index.Search(qv, limit)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return []memory.SearchResult{}, nil
	}

	seqs := make([]int, len(neighbors))
	for i, nb := range neighbors {
		seqs[i] = nb.ID
	}
	var rows []messageRecord
	if err := s.db(ctx).Where("seq IN ?", seqs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load neighbour messages: %w", err)
	}
	bySeq := make(map[int]messageRecord, len(rows))
	for _, row := range rows {
		bySeq[row.Seq] = row
	}

	results := make([]memory.SearchResult, 0, len(neighbors))
	for _, nb := range neighbors {
		row, ok := bySeq[nb.ID]
		if !ok {
			continue
		}
		results = append(results, memory.SearchResult{
			Message: row.toMessage(s.logger),
			Score:   1 - nb.Distance,
			Source:  memory.SourceVectorSearch,
		})
	}
	return results, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (s *Store) textSearchLocked(ctx context.Context, query string, limit int) ([]memory.SearchResult, error) {
	needle := strings.ToLower(query)
	results := make([]memory.SearchResult, 0, limit)

	// 未刷新的消息最新
	for i := len(s.pending) - 1; i >= 0 && len(results) < limit; i-- {
		if strings.Contains(strings.ToLower(s.pending[i].msg.Content), needle) {
			results = append(results, textResult(s.pending[i].msg))
		}
	}
	if len(results) >= limit {
		return results, nil
	}

	var rows []messageRecord
	pattern := "%" + likeEscaper.Replace(needle) + "%"
	err := s.db(ctx).
		Where("LOWER(content) LIKE ? ESCAPE '!'", pattern).
		Order("seq DESC").
		Limit(limit - len(results)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	for _, row := range rows {
		results = append(results, textResult(row.toMessage(s.logger)))
	}
	return results, nil
}

func textResult(msg memory.Message) memory.SearchResult {
	return memory.SearchResult{Message: msg, Score: memory.TextSearchScore, Source: memory.SourceTextSearch}
}

// Context 合并最近消息与相似消息.
func (s *Store) Context(ctx context.Context, query string, budget int) ([]memory.ContextEntry, error) {
	return memory.AssembleContext(ctx, s.Recent, s.SimilaritySearch, query, budget)
}

// Stats 报告计数、存储大小与检索统计.
func (s *Store) Stats(ctx context.Context) (memory.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := memory.Stats{Backend: memory.KindVector, Speakers: []string{}}
	if s.closed {
		return stats, memory.ErrClosed
	}
	s.flushForRead(ctx)

	var total, embeddings int64
	if err := s.db(ctx).Model(&messageRecord{}).Count(&total).Error; err != nil {
		return stats, fmt.Errorf("count messages: %w", err)
	}
	if err := s.db(ctx).Model(&embeddingRecord{}).Count(&embeddings).Error; err != nil {
		return stats, fmt.Errorf("count embeddings: %w", err)
	}
	stats.TotalMessages = int(total) + len(s.pending)

	if err := s.db(ctx).Model(&messageRecord{}).Group("speaker").Order("MIN(seq)").Pluck("speaker", &stats.Speakers).Error; err != nil {
		return stats, fmt.Errorf("list speakers: %w", err)
	}

	var first, last messageRecord
	if total > 0 {
		if err := s.db(ctx).Order("seq ASC").Limit(1).Find(&first).Error; err != nil {
			return stats, fmt.Errorf("load first message: %w", err)
		}
		if err := s.db(ctx).Order("seq DESC").Limit(1).Find(&last).Error; err != nil {
			return stats, fmt.Errorf("load last message: %w", err)
		}
		stats.DateRange = &memory.TimeRange{Start: first.Timestamp, End: last.Timestamp}
	}

	var cacheHits int64
	if hc, ok := s.embedder.(embed.HitCounter); ok {
		cacheHits = hc.Hits()
	}

	stats.Details = map[string]any{
		"embedding_count": embeddings,
		"dimension":       s.embedder.Dimension(),
		"embedder":        s.embedder.Name(),
		"storage_bytes":   s.storageBytes(ctx),
		"cache_hits":      cacheHits,
		"vector_searches": s.searches,
		"index_available": s.index != nil,
		"pending":         len(s.pending),
	}
	return stats, nil
}

func (s *Store) storageBytes(ctx context.Context) int64 {
	if s.cfg.Driver != database.DriverSQLite {
		return 0
	}
	var size int64
	err := s.pool.DB().WithContext(ctx).
		Raw("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").
		Scan(&size).Error
	if err != nil {
		s.logger.Debug("failed to read sqlite size", zap.Error(err))
		return 0
	}
	return size
}

// Clear 删除该人设的全部消息与嵌入.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return memory.ErrClosed
	}

	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("persona = ?", s.persona).Delete(&embeddingRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("persona = ?", s.persona).Delete(&messageRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("clear vector memory: %w", err)
	}

	s.pending = nil
	s.nextSeq = 0
	s.searches = 0
	if s.index != nil {
		s.index.Reset()
	}
	if s.cfg.Driver == database.DriverSQLite {
		if err := s.pool.DB().WithContext(ctx).Exec("VACUUM").Error; err != nil {
			s.logger.Debug("vacuum failed", zap.Error(err))
		}
	}
	return nil
}

// Save 刷新待写消息.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return memory.ErrClosed
	}
	if err := s.flushLocked(ctx); err != nil {
		return fmt.Errorf("%w: %w", memory.ErrDurability, err)
	}
	return nil
}

// Close 刷新待写消息并释放数据库.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.flushLocked(context.Background())
	closeErr := s.pool.Close()
	return errors.Join(flushErr, closeErr)
}

func chronological(rows []messageRecord, logger *zap.Logger) []memory.Message {
	msgs := make([]memory.Message, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = row.toMessage(logger)
	}
	return msgs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var (
	_ memory.Backend            = (*Store)(nil)
	_ memory.SimilaritySearcher = (*Store)(nil)
)
