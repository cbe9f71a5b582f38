package persona

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPersona 表示人设文件无法驱动克隆.
var ErrInvalidPersona = errors.New("invalid persona")

// DefaultAge 在年龄缺失或不是数字时使用.
const DefaultAge = 25

// Choice 为一道选择题的答案.
type Choice struct {
	Choice string `json:"choice" yaml:"choice"`
	Index  int    `json:"index" yaml:"index"`
}

// BasicInfo 保存自由填写的身份信息.
type BasicInfo struct {
	Name       string `json:"name" yaml:"name"`
	Age        string `json:"age" yaml:"age"`
	Location   string `json:"location" yaml:"location"`
	Occupation string `json:"occupation" yaml:"occupation"`
}

type CommunicationStyle struct {
	Formality      Choice `json:"formality" yaml:"formality"`
	Humor          Choice `json:"humor" yaml:"humor"`
	Expressiveness Choice `json:"expressiveness" yaml:"expressiveness"`
	ResponseLength Choice `json:"response_length" yaml:"response_length"`
}

type Traits struct {
	Extroversion   Choice `json:"extroversion" yaml:"extroversion"`
	Openness       Choice `json:"openness" yaml:"openness"`
	EmotionalStyle Choice `json:"emotional_style" yaml:"emotional_style"`
	DecisionMaking Choice `json:"decision_making" yaml:"decision_making"`
}

type Interests struct {
	Hobbies              string `json:"hobbies" yaml:"hobbies"`
	Topics               string `json:"topics" yaml:"topics"`
	Values               string `json:"values" yaml:"values"`
	ConversationStarters string `json:"conversation_starters" yaml:"conversation_starters"`
}

// Persona 是由问卷答案构建的克隆人格.
type Persona struct {
	CloneName          string             `json:"clone_name" yaml:"clone_name"`
	BasicInfo          BasicInfo          `json:"basic_info" yaml:"basic_info"`
	CommunicationStyle CommunicationStyle `json:"communication_style" yaml:"communication_style"`
	PersonalityTraits  Traits             `json:"personality_traits" yaml:"personality_traits"`
	Interests          Interests          `json:"interests" yaml:"interests"`
}

// Load 从 YAML 或 JSON 答案文件读取人设.
func Load(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse 解码 YAML 或 JSON 人设数据.
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPersona, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate 检查每个提示词都需要的字段.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Name()) == "" {
		return fmt.Errorf("%w: basic_info.name is required", ErrInvalidPersona)
	}
	return nil
}

// Name 返回克隆名，优先取 basic_info.name.
func (p *Persona) Name() string {
	if p.BasicInfo.Name != "" {
		return p.BasicInfo.Name
	}
	return p.CloneName
}

// AgeYears 解析年龄答案，失败时回退到 DefaultAge.
func (p *Persona) AgeYears() int {
	age, err := strconv.Atoi(strings.TrimSpace(p.BasicInfo.Age))
	if err != nil || age <= 0 {
		return DefaultAge
	}
	return age
}

// Summary 返回一行描述.
func (p *Persona) Summary() string {
	return fmt.Sprintf("%s-year-old %s from %s", p.BasicInfo.Age, p.BasicInfo.Occupation, p.BasicInfo.Location)
}

// ResponseLength 为偏好的回复长度.
type ResponseLength int

const (
	LengthUnspecified ResponseLength = iota
	LengthVeryShort
	LengthShort
	LengthMedium
	LengthDetailed
)

// Length 归类 response_length 答案.
func (p *Persona) Length() ResponseLength {
	choice := strings.ToLower(p.CommunicationStyle.ResponseLength.Choice)
	switch {
	case strings.Contains(choice, "very short"):
		return LengthVeryShort
	case strings.Contains(choice, "short"):
		return LengthShort
	case strings.Contains(choice, "medium"):
		return LengthMedium
	case strings.Contains(choice, "detailed"):
		return LengthDetailed
	default:
		return LengthUnspecified
	}
}

// SoftLimit 为回复的字符数上限，超过即视为对该人设过长，0 表示不限制.
func (l ResponseLength) SoftLimit() int {
	switch l {
	case LengthVeryShort:
		return 150
	case LengthShort:
		return 250
	default:
		return 0
	}
}
