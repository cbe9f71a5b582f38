package clone

import (
	"strings"
	"unicode/utf8"
)

// sentenceSep 将回复切分为句子.
const sentenceSep = ". "

var terminators = []string{".", "!", "?"}

// PostProcess 修剪原始生成结果并执行人设的软长度限制，limit 为 0 时不缩短.
func PostProcess(reply string, limit, age int) string {
	reply = strings.TrimSpace(reply)

	if limit > 0 && runeLen(reply) > limit {
		reply = Shorten(reply, limit, age)
	}
	return dropIncompleteTail(reply)
}

// Shorten 将回复截至最多 limit 个字符，尽量保留完整句子.
// 一句都放不下时，按说话人年龄压缩首句，再在词边界截断.
func Shorten(reply string, limit, age int) string {
	if runeLen(reply) <= limit {
		return reply
	}

	sentences := strings.Split(reply, sentenceSep)
	if len(sentences) == 1 {
		return truncateWords(reply, limit)
	}

	var b strings.Builder
	for _, s := range sentences {
		if runeLen(b.String())+runeLen(s)+len(sentenceSep) > limit {
			break
		}
		b.WriteString(s)
		b.WriteString(sentenceSep)
	}
	if kept := strings.TrimSpace(b.String()); kept != "" {
		return kept
	}

	condensed := Condense(sentences[0], age)
	if runeLen(condensed) > limit {
		return truncateWords(condensed, limit)
	}
	return condensed
}

// Condense 对青少年保留前 8 个词、二十多岁保留前 12 个词，并以省略号标记截断.
// 年长者不变.
func Condense(sentence string, age int) string {
	var keep int
	switch {
	case age < 20:
		keep = 8
	case age < 30:
		keep = 12
	default:
		return sentence
	}
	words := strings.Fields(sentence)
	if len(words) <= keep {
		return sentence
	}
	return strings.Join(words[:keep], " ") + "..."
}

func truncateWords(text string, limit int) string {
	var b strings.Builder
	for _, w := range strings.Fields(text) {
		if runeLen(b.String())+runeLen(w)+1 > limit {
			break
		}
		b.WriteString(w)
		b.WriteByte(' ')
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	// 首个单词已超长，按字符截断
	return string([]rune(text)[:limit])
}

// dropIncompleteTail 在前面至少有一个完整句子时去掉未结束的尾部片段.
func dropIncompleteTail(reply string) string {
	if reply == "" {
		return reply
	}
	for _, t := range terminators {
		if strings.HasSuffix(reply, t) {
			return reply
		}
	}
	sentences := strings.Split(reply, sentenceSep)
	if len(sentences) > 1 && strings.TrimSpace(sentences[len(sentences)-1]) != "" {
		return strings.Join(sentences[:len(sentences)-1], sentenceSep) + "."
	}
	return reply
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
