package service

import (
	"regexp"
	"strings"
)

// 交付渠道只渲染纯文本，这里把模型常见的 Markdown 标记剥成可读的纯文本。
var (
	reCodeFence  = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reBold       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	// 斜体只处理星号形式。单下划线会命中 file_name 这类标识符中间的下划线，不能剥。
	reItalic     = regexp.MustCompile(`\*([^*]+)\*`)
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	reBlockquote = regexp.MustCompile(`(?m)^>\s?`)
)

// StripMarkdown 移除富文本标记，只保留文字内容。
func StripMarkdown(text string) string {
	if text == "" {
		return text
	}

	text = reCodeFence.ReplaceAllString(text, "$1")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reImage.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reBold.ReplaceAllString(text, "$1$2")
	text = reItalic.ReplaceAllString(text, "$1")
	text = reHeading.ReplaceAllString(text, "")
	text = reBlockquote.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}
