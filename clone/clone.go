package clone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/llm"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/persona"
)

const (
	// DefaultTimeout 限定单次生成的耗时.
	DefaultTimeout = 30 * time.Second
	// DefaultContextBudget 为每轮请求的上下文条数.
	DefaultContextBudget = 8
	// UserSpeaker 为用户一侧的说话人标签.
	UserSpeaker = "User"
)

// Memory 为克隆所需的记忆管理器子集.
type Memory interface {
	AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) int
	ContextFor(ctx context.Context, message string, budget int) string
}

// Clone 以人设身份回复消息，由对话记忆支撑.
type Clone struct {
	persona      *persona.Persona
	systemPrompt string
	memory       Memory
	generator    llm.Generator
	genOpts      llm.GenerateOptions
	timeout      time.Duration
	budget       int
	tracer       trace.Tracer
	logger       *zap.Logger
}

// Option 配置 Clone.
type Option func(*Clone)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Clone) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(c *Clone) { c.genOpts = opts }
}

// WithTimeout 设置每轮生成超时，非正值忽略.
func WithTimeout(d time.Duration) Option {
	return func(c *Clone) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithContextBudget 设置每轮请求的上下文条数.
func WithContextBudget(n int) Option {
	return func(c *Clone) {
		if n > 0 {
			c.budget = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Clone) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// New 创建克隆. mem 可为 nil，此时不记录对话.
func New(p *persona.Persona, mem Memory, gen llm.Generator, opts ...Option) *Clone {
	c := &Clone{
		persona:   p,
		memory:    mem,
		generator: gen,
		genOpts:   llm.DefaultGenerateOptions(),
		timeout:   DefaultTimeout,
		budget:    DefaultContextBudget,
		tracer:    otel.Tracer("github.com/BaSui01/aiclone/clone"),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.systemPrompt = p.SystemPrompt()
	c.logger = c.logger.With(zap.String("component", "clone"), zap.String("persona", p.Name()))
	return c
}

// Name 返回人设名，即克隆的说话人标签.
func (c *Clone) Name() string { return c.persona.Name() }

// Persona 返回克隆的人设.
func (c *Clone) Persona() *persona.Persona { return c.persona }

// BuildPrompt 为 message 组装完整的生成提示词.
func (c *Clone) BuildPrompt(ctx context.Context, message string) string {
	var b strings.Builder
	b.WriteString(c.systemPrompt)
	b.WriteString("\n\n")

	if c.memory != nil {
		if history := c.memory.ContextFor(ctx, message, c.budget); history != "" && history != memory.NoConversation {
			b.WriteString("RECENT CONVERSATION CONTEXT:\n")
			b.WriteString(history)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("RESPONSE STYLE: ")
	b.WriteString(c.persona.ResponseInstruction(message))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s: %s\n%s: ", UserSpeaker, message, c.Name())
	return b.String()
}

// Respond 生成克隆回复并记录本轮双方消息.
// 生成失败时返回致歉语，记忆不变.
func (c *Clone) Respond(ctx context.Context, message string) string {
	ctx, span := c.tracer.Start(ctx, "clone.respond",
		trace.WithAttributes(attribute.String("clone.persona", c.Name())))
	defer span.End()

	reply, err := c.generate(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("generate reply failed", zap.Error(err))
		return fmt.Sprintf("Sorry, I'm having trouble responding right now: %v", err)
	}

	if c.memory != nil {
		c.memory.AddMessage(ctx, UserSpeaker, message, nil)
		c.memory.AddMessage(ctx, c.Name(), reply, nil)
	}
	span.SetAttributes(attribute.Int("clone.reply_length", runeLen(reply)))
	return reply
}

func (c *Clone) generate(ctx context.Context, message string) (string, error) {
	prompt := c.BuildPrompt(ctx, message)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.generator.Generate(genCtx, prompt, c.genOpts)
	if err != nil {
		return "", err
	}
	c.logger.Debug("reply generated",
		zap.Duration("latency", time.Since(start)),
		zap.Int("raw_length", runeLen(raw)))

	return PostProcess(raw, c.persona.Length().SoftLimit(), c.persona.AgeYears()), nil
}
