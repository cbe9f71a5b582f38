// Package keyword 实现关键词与话题索引记忆后端.
//
// 索引建立在 store.MessageStore 之上：关键词与话题映射到消息 id，统计说话人词汇，
// 每 SummaryThreshold 条消息生成一条摘要. 索引快照为 JSON，与消息日志不一致时从日志重建.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/store"
)

// Config 配置 Index.
type Config struct {
	Persona string `json:"persona" yaml:"persona"`

	// DataDir 下存放 keyword_index/<persona>_index.json，为空时不写快照
	DataDir string `json:"data_dir" yaml:"data_dir"`

	SummaryThreshold int `json:"summary_threshold" yaml:"summary_threshold"`
	SaveEvery        int `json:"save_every" yaml:"save_every"`
	MaxSummaries     int `json:"max_summaries" yaml:"max_summaries"`

	Now func() time.Time `json:"-" yaml:"-"`
}

// DefaultConfig 返回标准阈值.
func DefaultConfig(persona, dataDir string) Config {
	return Config{
		Persona:          persona,
		DataDir:          dataDir,
		SummaryThreshold: 20,
		SaveEvery:        5,
		MaxSummaries:     10,
	}
}

func (c *Config) normalize() {
	if c.SummaryThreshold < 1 {
		c.SummaryThreshold = 20
	}
	if c.SaveEvery < 1 {
		c.SaveEvery = 5
	}
	if c.MaxSummaries < 1 {
		c.MaxSummaries = 10
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Index 是关键词记忆后端.
type Index struct {
	mu     sync.RWMutex
	cfg    Config
	store  store.MessageStore
	logger *zap.Logger

	keywordIndex    map[string][]int
	topicIndex      map[string][]int
	speakerKeywords map[string]map[string]int
	summaries       []memory.ConversationSummary

	// 每条消息的关键词与话题缓存，下标即消息 ID
	msgKeywords [][]string
	msgTopics   [][]string

	snapshotPath string
	closed       bool
}

// New 在 s 上构建索引，快照与日志一致时直接恢复.
func New(s store.MessageStore, cfg Config, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.normalize()

	idx := &Index{
		cfg:    cfg,
		store:  s,
		logger: logger.With(zap.String("component", "keyword_memory"), zap.String("persona", cfg.Persona)),
	}
	if cfg.DataDir != "" {
		idx.snapshotPath = SnapshotPath(cfg.DataDir, cfg.Persona)
	}
	idx.resetLocked()
	idx.load()
	return idx
}

// Open 按 storeCfg 创建消息存储并在其上构建索引.
func Open(storeCfg store.Config, cfg Config, logger *zap.Logger) (*Index, error) {
	s, err := store.NewMessageStore(storeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return New(s, cfg, logger), nil
}

func (x *Index) resetLocked() {
	x.keywordIndex = make(map[string][]int)
	x.topicIndex = make(map[string][]int)
	x.speakerKeywords = make(map[string]map[string]int)
	x.summaries = nil
	x.msgKeywords = nil
	x.msgTopics = nil
}

// load 计算消息缓存，再尝试采用快照；快照不可用时全量重建.
func (x *Index) load() {
	messages := x.store.All()
	x.msgKeywords = make([][]string, len(messages))
	x.msgTopics = make([][]string, len(messages))
	for i, msg := range messages {
		x.msgKeywords[i] = memory.ExtractKeywords(msg.Content)
		x.msgTopics[i] = memory.ExtractTopics(msg.Content)
	}

	from := 0
	snap, err := x.readSnapshot()
	switch {
	case err != nil:
		x.logger.Warn("keyword snapshot unusable, rebuilding", zap.Error(err))
	case snap == nil:
	case !snap.consistentWith(messages):
		x.logger.Warn("keyword snapshot does not match message log, rebuilding",
			zap.Int("snapshot_indexed", snap.TotalIndexed),
			zap.Int("messages", len(messages)),
		)
	default:
		x.keywordIndex = snap.KeywordIndex
		x.topicIndex = snap.TopicIndex
		x.speakerKeywords = snap.SpeakerKeywords
		x.summaries = snap.ConversationSummaries
		from = snap.TotalIndexed
	}

	for _, msg := range messages[from:] {
		x.indexLocked(msg)
	}
	x.logger.Debug("keyword index ready",
		zap.Int("messages", len(messages)),
		zap.Int("from_snapshot", from),
		zap.Int("keywords", len(x.keywordIndex)),
	)
}

// indexLocked 把消息写入倒排索引，要求缓存中已有该消息.
func (x *Index) indexLocked(msg memory.Message) {
	keywords := x.msgKeywords[msg.ID]
	for _, kw := range keywords {
		x.keywordIndex[kw] = append(x.keywordIndex[kw], msg.ID)
	}
	for _, topic := range x.msgTopics[msg.ID] {
		x.topicIndex[topic] = append(x.topicIndex[topic], msg.ID)
	}

	counts, ok := x.speakerKeywords[msg.Speaker]
	if !ok {
		counts = make(map[string]int, len(keywords))
		x.speakerKeywords[msg.Speaker] = counts
	}
	for _, kw := range keywords {
		counts[kw]++
	}
}

func (x *Index) Kind() memory.Kind { return memory.KindKeyword }

func (x *Index) Capabilities() memory.Capabilities {
	return memory.Capabilities{KeywordIndex: true, Summaries: true}
}

// AddMessage 追加日志并索引消息. 每 SummaryThreshold 条记录一次摘要，
// 每 SaveEvery 条写一次快照.
func (x *Index) AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return 0, memory.ErrClosed
	}

	msg, appendErr := x.store.Append(ctx, speaker, content, metadata)
	x.msgKeywords = append(x.msgKeywords, memory.ExtractKeywords(msg.Content))
	x.msgTopics = append(x.msgTopics, memory.ExtractTopics(msg.Content))
	x.indexLocked(msg)

	total := len(x.msgKeywords)
	if total%x.cfg.SummaryThreshold == 0 {
		x.summarizeLocked()
	}
	if total%x.cfg.SaveEvery == 0 {
		if err := x.saveSnapshotLocked(); err != nil {
			x.logger.Warn("failed to save keyword snapshot", zap.Error(err))
		}
	}
	return msg.ID, appendErr
}

func (x *Index) Recent(_ context.Context, n int) ([]memory.Message, error) {
	return x.store.Recent(n), nil
}

func (x *Index) BySpeaker(_ context.Context, speaker string, n int) ([]memory.Message, error) {
	return x.store.BySpeaker(speaker, n), nil
}

// Search 按关键词命中 (+1)、话题命中 (+2) 与最近 2*limit 条内的子串匹配 (+0.5) 打分.
func (x *Index) Search(_ context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if limit <= 0 {
		return []memory.SearchResult{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var s scorer
	for _, kw := range memory.ExtractKeywords(query) {
		for _, id := range x.keywordIndex[kw] {
			s.add(id, 1.0)
		}
	}
	for _, topic := range memory.ExtractTopics(query) {
		for _, id := range x.topicIndex[topic] {
			s.add(id, 2.0)
		}
	}
	for _, msg := range x.store.Search(query, limit*2) {
		s.add(msg.ID, 0.5)
	}

	return x.collect(s.ranked(), limit, memory.SourceKeywordIndex), nil
}

// RelevantTo 对最近窗口之前的每条消息打分：关键词重合 ×1，话题重合 ×3，
// 另加最多 0.5 的时间加成.
func (x *Index) RelevantTo(_ context.Context, current string, limit int) ([]memory.SearchResult, error) {
	if limit <= 0 {
		return []memory.SearchResult{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	poolSize := len(x.msgKeywords) - memory.RecentWindow
	if poolSize <= 0 {
		return []memory.SearchResult{}, nil
	}

	queryKeywords := toSet(memory.ExtractKeywords(current))
	queryTopics := toSet(memory.ExtractTopics(current))

	var s scorer
	for i := 0; i < poolSize; i++ {
		score := float64(overlap(queryKeywords, x.msgKeywords[i]))*1.0 +
			float64(overlap(queryTopics, x.msgTopics[i]))*3.0 +
			float64(i)/float64(poolSize)*0.5
		if score > 0 {
			s.add(i, score)
		}
	}

	return x.collect(s.ranked(), limit, memory.SourceKeywordIndex), nil
}

func (x *Index) collect(ranked []scored, limit int, source memory.Source) []memory.SearchResult {
	results := make([]memory.SearchResult, 0, min(limit, len(ranked)))
	for _, hit := range ranked {
		if len(results) >= limit {
			break
		}
		msg, ok := x.store.Get(hit.id)
		if !ok {
			continue
		}
		results = append(results, memory.SearchResult{Message: msg, Score: hit.score, Source: source})
	}
	return results
}

// Context 合并最近窗口与 RelevantTo 的结果.
func (x *Index) Context(ctx context.Context, query string, budget int) ([]memory.ContextEntry, error) {
	return memory.AssembleContext(ctx, x.Recent, x.RelevantTo, query, budget)
}

// ConversationSummary 渲染最近的摘要.
func (x *Index) ConversationSummary() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return renderSummaries(x.summaries)
}

// Summaries 返回摘要环的副本，按时间从旧到新.
func (x *Index) Summaries() []memory.ConversationSummary {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]memory.ConversationSummary(nil), x.summaries...)
}

// SpeakerProfile 返回说话人的词汇与风格画像.
func (x *Index) SpeakerProfile(speaker string) memory.SpeakerProfile {
	x.mu.RLock()
	defer x.mu.RUnlock()

	counts, ok := x.speakerKeywords[speaker]
	if !ok {
		return memory.SpeakerProfile{Speaker: speaker, TopKeywords: []string{}, Style: StyleUnknown}
	}
	return buildProfile(speaker, counts, x.store.BySpeaker(speaker, x.store.Len()))
}

func (x *Index) Stats(context.Context) (memory.Stats, error) {
	stats := x.store.Stats()
	stats.Backend = memory.KindKeyword

	x.mu.RLock()
	defer x.mu.RUnlock()
	stats.Details = map[string]any{
		"keyword_count":          len(x.keywordIndex),
		"topic_count":            len(x.topicIndex),
		"speakers":               len(x.speakerKeywords),
		"conversation_summaries": len(x.summaries),
		"total_indexed":          len(x.msgKeywords),
	}
	return stats, nil
}

// Clear 清空日志、索引与快照文件.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.store.Clear(ctx)
	x.resetLocked()
	return errors.Join(err, x.removeSnapshot())
}

// Save 刷新日志并写快照.
func (x *Index) Save(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.store.Save(ctx)
	if snapErr := x.saveSnapshotLocked(); snapErr != nil {
		err = errors.Join(err, fmt.Errorf("%w: %w", memory.ErrDurability, snapErr))
	}
	return err
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true

	var errs []error
	if err := x.saveSnapshotLocked(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", memory.ErrDurability, err))
	}
	errs = append(errs, x.store.Close())
	return errors.Join(errs...)
}

var (
	_ memory.Backend    = (*Index)(nil)
	_ memory.Summarizer = (*Index)(nil)
)

type scored struct {
	id    int
	score float64
}

// scorer 累加分数并记录首次发现顺序，用于稳定排序.
type scorer struct {
	order []scored
	pos   map[int]int
}

func (s *scorer) add(id int, delta float64) {
	if s.pos == nil {
		s.pos = make(map[int]int)
	}
	if i, ok := s.pos[id]; ok {
		s.order[i].score += delta
		return
	}
	s.pos[id] = len(s.order)
	s.order = append(s.order, scored{id: id, score: delta})
}

func (s *scorer) ranked() []scored {
	sort.SliceStable(s.order, func(i, j int) bool { return s.order[i].score > s.order[j].score })
	return s.order
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func overlap(set map[string]struct{}, items []string) int {
	n := 0
	for _, item := range items {
		if _, ok := set[item]; ok {
			n++
		}
	}
	return n
}
