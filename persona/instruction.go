package persona

import (
	"strings"
	"unicode"
)

var (
	greetingWords   = []string{"hi", "hello", "hey"}
	greetingPhrases = []string{"how are you"}
	complexWords    = []string{"explain", "describe", "why", "how"}
	complexPhrases  = []string{"tell me about", "what do you think"}
)

// simpleMessageWords 为闲聊消息的最大词数.
const simpleMessageWords = 3

// MessageShape 为回复风格对来信的分类.
type MessageShape int

const (
	ShapeConversational MessageShape = iota
	ShapeCasual
	ShapeComplex
)

// ClassifyMessage 判断消息是问候或简短评论、请求解释，还是普通对话.
func ClassifyMessage(message string) MessageShape {
	words := wordsOf(message)
	lower := " " + strings.Join(words, " ") + " "

	if len(strings.Fields(message)) <= simpleMessageWords || containsAny(words, lower, greetingWords, greetingPhrases) {
		return ShapeCasual
	}
	if containsAny(words, lower, complexWords, complexPhrases) {
		return ShapeComplex
	}
	return ShapeConversational
}

// ResponseInstruction 为回复 message 生成 RESPONSE STYLE 行.
func (p *Persona) ResponseInstruction(message string) string {
	var parts []string

	switch p.Length() {
	case LengthVeryShort:
		parts = append(parts, "Keep your response very brief (1-2 sentences max)")
	case LengthShort:
		parts = append(parts, "Keep your response short and to the point (2-3 sentences)")
	case LengthMedium:
		parts = append(parts, "Use medium length responses (3-4 sentences)")
	case LengthDetailed:
		parts = append(parts, "Provide detailed, thoughtful responses (4+ sentences)")
	}

	extro := strings.ToLower(p.PersonalityTraits.Extroversion.Choice)
	switch {
	case strings.Contains(extro, "very extroverted"):
		parts = append(parts, "Show your social energy and enthusiasm")
	case strings.Contains(extro, "somewhat introverted"):
		parts = append(parts, "Be thoughtful and measured in your response")
	}

	express := strings.ToLower(p.CommunicationStyle.Expressiveness.Choice)
	switch {
	case strings.Contains(express, "very expressive"):
		parts = append(parts, "Show your emotions and enthusiasm naturally")
	case strings.Contains(express, "reserved"):
		parts = append(parts, "Keep your response measured and thoughtful")
	}

	switch age := p.AgeYears(); {
	case age < 20:
		parts = append(parts, "Use Gen Z language patterns and modern slang naturally")
	case age < 30:
		parts = append(parts, "Balance casual and thoughtful communication")
	case age < 50:
		parts = append(parts, "Use professional but approachable language")
	default:
		parts = append(parts, "Use mature, thoughtful communication")
	}

	switch ClassifyMessage(message) {
	case ShapeCasual:
		parts = append(parts, "Keep it casual and friendly")
	case ShapeComplex:
		parts = append(parts, "Provide a helpful, focused answer")
	default:
		parts = append(parts, "Respond naturally to the conversation flow")
	}

	return strings.Join(parts, ". ") + "."
}

func wordsOf(message string) []string {
	return strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAny(words []string, padded string, single, phrases []string) bool {
	for _, w := range words {
		for _, s := range single {
			if w == s {
				return true
			}
		}
	}
	for _, phrase := range phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
