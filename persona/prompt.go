package persona

import (
	"strings"
	"text/template"
)

var systemPromptTemplate = template.Must(template.New("system").Parse(
	`You are {{.Name}}, a {{.Age}}-year-old from {{.Location}} who works as {{.Occupation}}.

PERSONALITY CORE:
{{.Personality}}

COMMUNICATION STYLE:
{{.Communication}}

INTERESTS & TOPICS:
{{.Interests}}

CONVERSATION GUIDELINES:
- Always stay in character as {{.Name}}
- Be consistent with your personality traits and communication style
- Reference your interests and background naturally
- Remember previous parts of conversations
- Respond as a real person would, not as an AI
- Keep responses natural and human-like
- Don't break character or mention being an AI

Remember: You ARE {{.Name}}. This is your personality, your life, your way of speaking.`))

type promptData struct {
	Name          string
	Age           string
	Location      string
	Occupation    string
	Personality   string
	Communication string
	Interests     string
}

// SystemPrompt 渲染人设的角色提示词.
func (p *Persona) SystemPrompt() string {
	var b strings.Builder
	// 模板与字段均为静态定义，执行不会失败
	_ = systemPromptTemplate.Execute(&b, promptData{
		Name:          p.Name(),
		Age:           p.BasicInfo.Age,
		Location:      p.BasicInfo.Location,
		Occupation:    p.BasicInfo.Occupation,
		Personality:   p.personalityDescription(),
		Communication: p.communicationDescription(),
		Interests:     p.interestsDescription(),
	})
	return b.String()
}

func bulletList(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "\n")
}

func (p *Persona) communicationDescription() string {
	comm := p.CommunicationStyle
	var parts []string

	formality := comm.Formality.Choice
	switch {
	case strings.Contains(formality, "Very casual"):
		parts = append(parts, "- Use very casual language (hey, sup, lol, short responses)")
	case strings.Contains(formality, "Casual"):
		parts = append(parts, "- Use casual, friendly language")
	case strings.Contains(strings.ToLower(formality), "formal"):
		parts = append(parts, "- Use more formal, polite language")
	}

	if humor := comm.Humor.Choice; humor != "" {
		parts = append(parts, "- Incorporate "+strings.ToLower(humor)+" into conversations")
	}

	express := strings.ToLower(comm.Expressiveness.Choice)
	switch {
	case strings.Contains(express, "reserved"):
		parts = append(parts, "- Be more reserved and measured in responses")
	case strings.Contains(express, "expressive"):
		parts = append(parts, "- Be expressive and enthusiastic in responses")
	}

	length := strings.ToLower(comm.ResponseLength.Choice)
	switch {
	case strings.Contains(length, "short"):
		parts = append(parts, "- Keep responses concise and to the point")
	case strings.Contains(length, "detailed"):
		parts = append(parts, "- Provide detailed, thoughtful responses")
	}

	return bulletList(parts, "- Use natural, authentic communication")
}

func (p *Persona) personalityDescription() string {
	traits := p.PersonalityTraits
	var parts []string

	extro := strings.ToLower(traits.Extroversion.Choice)
	switch {
	case strings.Contains(extro, "introverted"):
		parts = append(parts, "- You're more introverted - prefer meaningful conversations over small talk")
	case strings.Contains(extro, "extroverted"):
		parts = append(parts, "- You're extroverted - enjoy meeting new people and socializing")
	}

	openness := strings.ToLower(traits.Openness.Choice)
	switch {
	case strings.Contains(openness, "cautious"):
		parts = append(parts, "- You're cautious about new experiences - prefer familiar things")
	case strings.Contains(openness, "adventurous"):
		parts = append(parts, "- You're adventurous and love trying new experiences")
	}

	emotional := strings.ToLower(traits.EmotionalStyle.Choice)
	switch {
	case strings.Contains(emotional, "reserved"):
		parts = append(parts, "- You express emotions subtly and thoughtfully")
	case strings.Contains(emotional, "expressive"):
		parts = append(parts, "- You express emotions openly and directly")
	}

	decision := strings.ToLower(traits.DecisionMaking.Choice)
	switch {
	case strings.Contains(decision, "logical"):
		parts = append(parts, "- You make decisions based on logic and facts")
	case strings.Contains(decision, "intuitive"):
		parts = append(parts, "- You trust your gut and make intuitive decisions")
	}

	return bulletList(parts, "- You have a balanced, authentic personality")
}

func (p *Persona) interestsDescription() string {
	in := p.Interests
	var parts []string
	if in.Hobbies != "" {
		parts = append(parts, "- Your hobbies include: "+in.Hobbies)
	}
	if in.Topics != "" {
		parts = append(parts, "- You love talking about: "+in.Topics)
	}
	if in.Values != "" {
		parts = append(parts, "- What matters most to you in relationships: "+in.Values)
	}
	if in.ConversationStarters != "" {
		parts = append(parts, "- Your conversation style: "+in.ConversationStarters)
	}
	return bulletList(parts, "- You have diverse interests and enjoy good conversation")
}
