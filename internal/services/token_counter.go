package services

import (
	"strings"
	"unicode"
)

// TokenCounter 本地token估算
//
// No tokenizer is loaded; the estimate only has to be good enough to keep the
// retrieved context inside its budget.
type TokenCounter struct{}

// NewTokenCounter 创建Token计数服务
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// CountTokens 估算文本的token数量
func (tc *TokenCounter) CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	var runes, cjk int
	for _, r := range text {
		runes++
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		}
	}
	words := len(strings.Fields(text))

	// 中文字符按1.5个token计算，其余按单词1.3或每4个字符1个取较大值
	other := runes - cjk
	wordBased := int(float64(words) * 1.3)
	charBased := other / 4
	estimated := wordBased
	if charBased > estimated {
		estimated = charBased
	}
	estimated += int(float64(cjk) * 1.5)

	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
