package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alexYAML = `
clone_name: Alex
basic_info:
  name: Alex
  age: 25
  location: San Francisco
  occupation: Software Developer
communication_style:
  formality: {choice: "Casual (hi, cool, nice)", index: 1}
  response_length: {choice: "Very short", index: 0}
personality_traits:
  extroversion: {choice: "Very extroverted", index: 4}
interests:
  hobbies: coding, coffee
`

func TestLoad_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "alex.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(alexYAML), 0o644))
	p, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Alex", p.Name())
	assert.Equal(t, "25", p.BasicInfo.Age)
	assert.Equal(t, 25, p.AgeYears())
	assert.Equal(t, LengthVeryShort, p.Length())
	assert.Equal(t, 4, p.PersonalityTraits.Extroversion.Index)

	jsonPath := filepath.Join(dir, "sam.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"clone_name":"Sam","basic_info":{"name":"Sam","age":"28","location":"Austin","occupation":"Artist"}}`), 0o644))
	p, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "28-year-old Artist from Austin", p.Summary())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Parse([]byte(`basic_info: {age: "30"}`))
	assert.ErrorIs(t, err, ErrInvalidPersona)

	_, err = Parse([]byte(`basic_info: [`))
	assert.ErrorIs(t, err, ErrInvalidPersona)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	p, err := Parse([]byte(`clone_name: Solo`))
	require.NoError(t, err)
	assert.Equal(t, "Solo", p.Name())
}

func TestAgeYears(t *testing.T) {
	tests := []struct {
		age  string
		want int
	}{
		{"17", 17},
		{" 42 ", 42},
		{"", DefaultAge},
		{"twenty", DefaultAge},
		{"-3", DefaultAge},
	}
	for _, tt := range tests {
		p := &Persona{BasicInfo: BasicInfo{Age: tt.age}}
		assert.Equal(t, tt.want, p.AgeYears(), "age %q", tt.age)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		choice string
		want   ResponseLength
		limit  int
	}{
		{"Very short", LengthVeryShort, 150},
		{"Short and concise", LengthShort, 250},
		{"Medium", LengthMedium, 0},
		{"Detailed and thorough", LengthDetailed, 0},
		{"", LengthUnspecified, 0},
	}
	for _, tt := range tests {
		p := &Persona{CommunicationStyle: CommunicationStyle{ResponseLength: Choice{Choice: tt.choice}}}
		assert.Equal(t, tt.want, p.Length(), tt.choice)
		assert.Equal(t, tt.limit, p.Length().SoftLimit(), tt.choice)
	}
}

func TestSystemPrompt_Demo(t *testing.T) {
	prompt := Demo("Alex").SystemPrompt()

	assert.Contains(t, prompt, "You are Alex, a 25-year-old from San Francisco who works as Software Developer.")
	assert.Contains(t, prompt, "- Use casual, friendly language")
	assert.Contains(t, prompt, "- Incorporate sarcastic/witty into conversations")
	assert.Contains(t, prompt, "- Be expressive and enthusiastic in responses")
	assert.Contains(t, prompt, "- You're extroverted - enjoy meeting new people and socializing")
	assert.Contains(t, prompt, "- You make decisions based on logic and facts")
	assert.Contains(t, prompt, "- Your hobbies include: coding, rock climbing, photography, coffee")
	assert.Contains(t, prompt, "Remember: You ARE Alex.")
}

func TestSystemPrompt_Fallbacks(t *testing.T) {
	prompt := (&Persona{BasicInfo: BasicInfo{Name: "Blank"}}).SystemPrompt()

	assert.Contains(t, prompt, "- Use natural, authentic communication")
	assert.Contains(t, prompt, "- You have a balanced, authentic personality")
	assert.Contains(t, prompt, "- You have diverse interests and enjoy good conversation")
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want MessageShape
	}{
		{"hi", ShapeCasual},
		{"Hello there my good friend", ShapeCasual},
		{"So how are you doing lately?", ShapeCasual},
		{"Can you explain compilers to me", ShapeComplex},
		{"Tell me about your weekend plans", ShapeComplex},
		{"I went to the store yesterday afternoon", ShapeConversational},
		{"Show me your favorite photos please", ShapeConversational},
		{"This is chill and this is fine", ShapeConversational},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMessage(tt.msg), tt.msg)
	}
}

func TestResponseInstruction(t *testing.T) {
	alex := Demo("Alex")
	assert.Equal(t,
		"Use medium length responses (3-4 sentences). Balance casual and thoughtful communication. Provide a helpful, focused answer.",
		alex.ResponseInstruction("What do you think about startups today?"))

	sam := Demo("Sam")
	assert.Equal(t,
		"Provide detailed, thoughtful responses (4+ sentences). Show your emotions and enthusiasm naturally. Balance casual and thoughtful communication. Keep it casual and friendly.",
		sam.ResponseInstruction("hey"))

	teen := &Persona{
		BasicInfo:          BasicInfo{Name: "Kai", Age: "17"},
		CommunicationStyle: CommunicationStyle{ResponseLength: Choice{Choice: "Very short"}, Expressiveness: Choice{Choice: "Somewhat reserved"}},
		PersonalityTraits:  Traits{Extroversion: Choice{Choice: "Very extroverted"}},
	}
	assert.Equal(t,
		"Keep your response very brief (1-2 sentences max). Show your social energy and enthusiasm. Keep your response measured and thoughtful. Use Gen Z language patterns and modern slang naturally. Respond naturally to the conversation flow.",
		teen.ResponseInstruction("I finished the last chapter of that book"))

	elder := &Persona{BasicInfo: BasicInfo{Name: "Ruth", Age: "64"}}
	assert.Equal(t, "Use mature, thoughtful communication. Keep it casual and friendly.", elder.ResponseInstruction("good morning"))
}

func TestDemos(t *testing.T) {
	demos := Demos()
	require.Len(t, demos, 2)
	for _, p := range demos {
		assert.NoError(t, p.Validate())
	}
	assert.Nil(t, Demo("Nobody"))
	assert.Equal(t, "28-year-old Artist & Designer from Austin", Demo("Sam").Summary())
}
