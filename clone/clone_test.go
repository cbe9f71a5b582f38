package clone

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/aiclone/llm"
	"github.com/BaSui01/aiclone/memory"
	"github.com/BaSui01/aiclone/memory/rolling"
	"github.com/BaSui01/aiclone/memory/store"
	"github.com/BaSui01/aiclone/persona"
)

type fakeGenerator struct {
	reply    string
	err      error
	prompts  []string
	opts     []llm.GenerateOptions
	deadline bool
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.opts = append(g.opts, opts)
	_, g.deadline = ctx.Deadline()
	return g.reply, g.err
}

type written struct{ speaker, content string }

type fakeMemory struct {
	context string
	budgets []int
	writes  []written
}

func (m *fakeMemory) AddMessage(_ context.Context, speaker, content string, _ map[string]any) int {
	m.writes = append(m.writes, written{speaker, content})
	return len(m.writes) - 1
}

func (m *fakeMemory) ContextFor(_ context.Context, _ string, budget int) string {
	m.budgets = append(m.budgets, budget)
	return m.context
}

func TestBuildPrompt(t *testing.T) {
	alex := persona.Demo("Alex")
	mem := &fakeMemory{context: "Alex: I like climbing"}
	c := New(alex, mem, &fakeGenerator{})

	prompt := c.BuildPrompt(context.Background(), "What do you think about startups today?")

	assert.True(t, strings.HasPrefix(prompt, alex.SystemPrompt()+"\n\n"))
	assert.Contains(t, prompt, "RECENT CONVERSATION CONTEXT:\nAlex: I like climbing\n\n")
	assert.Contains(t, prompt, "RESPONSE STYLE: "+alex.ResponseInstruction("What do you think about startups today?")+"\n\n")
	assert.True(t, strings.HasSuffix(prompt, "User: What do you think about startups today?\nAlex: "))
	assert.Equal(t, []int{DefaultContextBudget}, mem.budgets)
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	mem := &fakeMemory{context: memory.NoConversation}
	c := New(persona.Demo("Sam"), mem, &fakeGenerator{}, WithContextBudget(3))

	prompt := c.BuildPrompt(context.Background(), "hey")
	assert.NotContains(t, prompt, "RECENT CONVERSATION CONTEXT")
	assert.Equal(t, []int{3}, mem.budgets)

	withoutMemory := New(persona.Demo("Sam"), nil, &fakeGenerator{})
	assert.NotContains(t, withoutMemory.BuildPrompt(context.Background(), "hey"), "RECENT CONVERSATION CONTEXT")
}

func TestRespond_WritesTurn(t *testing.T) {
	gen := &fakeGenerator{reply: "  Climbing is great! I went last week. And then we  "}
	mem := &fakeMemory{}
	c := New(persona.Demo("Alex"), mem, gen, WithLogger(zaptest.NewLogger(t)))

	reply := c.Respond(context.Background(), "Been climbing lately?")

	assert.Equal(t, "Climbing is great! I went last week.", reply)
	assert.Equal(t, []written{{UserSpeaker, "Been climbing lately?"}, {"Alex", reply}}, mem.writes)
	require.Len(t, gen.opts, 1)
	assert.Equal(t, llm.DefaultGenerateOptions(), gen.opts[0])
	assert.True(t, gen.deadline)
}

func TestRespond_GenerationFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	gen := &fakeGenerator{err: errors.New("Cannot connect to Ollama")}
	mem := &fakeMemory{}
	c := New(persona.Demo("Alex"), mem, gen, WithTracer(tp.Tracer("test")), WithTimeout(time.Second))

	reply := c.Respond(context.Background(), "hello?")

	assert.Equal(t, "Sorry, I'm having trouble responding right now: Cannot connect to Ollama", reply)
	assert.Empty(t, mem.writes)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "clone.respond", spans[0].Name())
	assert.Len(t, spans[0].Events(), 1)
}

func TestRespond_ShortensForShortPersona(t *testing.T) {
	p := &persona.Persona{
		BasicInfo:          persona.BasicInfo{Name: "Kai", Age: "17"},
		CommunicationStyle: persona.CommunicationStyle{ResponseLength: persona.Choice{Choice: "Very short"}},
	}
	long := strings.Repeat("This sentence is here to pad the reply out a bit. ", 6)
	c := New(p, nil, &fakeGenerator{reply: long})

	reply := c.Respond(context.Background(), "tell me everything")
	assert.LessOrEqual(t, len([]rune(reply)), 150)
	assert.True(t, strings.HasSuffix(reply, "."))
}

func TestRespond_WithRollingMemory(t *testing.T) {
	backend := rolling.New(store.NewMemoryMessageStore(store.Config{Persona: "Alex"}), nil)
	mem := &backendMemory{backend: backend}
	gen := &fakeGenerator{reply: "Rock climbing mostly."}
	c := New(persona.Demo("Alex"), mem, gen)

	c.Respond(context.Background(), "What do you do on weekends?")
	c.Respond(context.Background(), "Anything else?")

	require.Len(t, gen.prompts, 2)
	assert.NotContains(t, gen.prompts[0], "RECENT CONVERSATION CONTEXT")
	assert.Contains(t, gen.prompts[1], "User: What do you do on weekends?")
	assert.Contains(t, gen.prompts[1], "Alex: Rock climbing mostly.")

	recent, err := backend.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 4)
}

// backendMemory adapts a bare backend to the Memory interface.
type backendMemory struct{ backend memory.Backend }

func (m *backendMemory) AddMessage(ctx context.Context, speaker, content string, metadata map[string]any) int {
	id, err := m.backend.AddMessage(ctx, speaker, content, metadata)
	if err != nil {
		return -1
	}
	return id
}

func (m *backendMemory) ContextFor(ctx context.Context, message string, budget int) string {
	entries, err := m.backend.Context(ctx, message, budget)
	if err != nil {
		return memory.NoConversation
	}
	return memory.FormatContext(entries)
}
