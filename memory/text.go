package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ===== 📦 关键词与话题抽取 =====

var punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)

var stopWords = toSet([]string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"i", "you", "he", "she", "it", "we", "they", "my", "your", "his", "her", "its", "our", "their",
	"is", "are", "was", "were", "be", "been", "being", "have", "has", "had", "do", "does", "did",
	"will", "would", "could", "should", "can", "may", "might", "must", "shall",
	"this", "that", "these", "those", "here", "there", "where", "when", "why", "how",
	"yes", "no", "not", "so", "very", "too", "much", "many", "more", "most", "less", "least",
	// 网络俚语
	"lol", "omg", "idk", "rn", "fr", "yaaas", "def", "2", "u", "r", "ur", "lowkey", "highkey",
	"hella", "lit", "slay", "vibe", "mood", "cap", "bet", "facts", "periodt",
	"stan", "tea", "spill", "shade", "thirsty", "woke", "bae", "fomo", "yolo", "fml",
	"hi", "me", "go", "up", "sessions", "ways", "obsessed", "tbh", "wut", "btw", "yeah",
})

type topicRule struct {
	name     string
	triggers []string
}

// 顺序即 ExtractTopics 的输出顺序.
var topicTable = []topicRule{
	{"travel", []string{"travel", "trip", "vacation", "visit", "country", "city", "hotel", "flight", "tourism"}},
	{"technology", []string{"computer", "software", "internet", "app", "digital", "tech", "programming", "code"}},
	{"food", []string{"food", "restaurant", "cooking", "recipe", "meal", "dinner", "lunch", "breakfast", "cuisine"}},
	{"work", []string{"work", "job", "career", "office", "business", "project", "meeting", "colleague", "boss"}},
	{"family", []string{"family", "parent", "child", "brother", "sister", "mother", "father", "relative"}},
	{"hobby", []string{"hobby", "interest", "sport", "music", "art", "reading", "gaming", "exercise"}},
	{"relationship", []string{"friend", "relationship", "love", "dating", "marriage", "partner", "social"}},
	{"education", []string{"school", "university", "study", "learn", "education", "student", "teacher", "course"}},
	{"health", []string{"health", "doctor", "medical", "fitness", "exercise", "wellness", "medicine"}},
	{"entertainment", []string{"movie", "show", "book", "game", "entertainment", "fun", "party", "event"}},
}

// IsStopWord 报告 token 是否属于停用词表.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// ExtractKeywords 返回文本中的关键词，去重并保持首次出现顺序.
func ExtractKeywords(text string) []string {
	clean := punctuation.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(clean)

	seen := make(map[string]struct{}, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, word := range fields {
		if utf8.RuneCountInString(word) <= 1 || IsStopWord(word) {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

// ExtractTopics 返回文本命中的话题，按话题表顺序.
// 触发词以子串方式匹配，"apple" 会命中 technology 的 "app".
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	topics := make([]string, 0, 2)
	for _, rule := range topicTable {
		for _, trigger := range rule.triggers {
			if strings.Contains(lower, trigger) {
				topics = append(topics, rule.name)
				break
			}
		}
	}
	return topics
}

// TopicNames 返回全部话题名.
func TopicNames() []string {
	names := make([]string, len(topicTable))
	for i, rule := range topicTable {
		names[i] = rule.name
	}
	return names
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
