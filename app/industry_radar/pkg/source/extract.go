package source

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// 字段浅层回退时最多拼接的字段数，以及字段的最短长度
const (
	maxFallbackFields = 2
	minFallbackLen    = 5
)

// ExtractText 从新闻条目中提取文本
//
// 依次取 title、headline、summary、description、content、text 中存在的值并用空格拼接；
// 都不存在时回退到按文档顺序找到的最多两个字符串字段；裸字符串直接使用。
func ExtractText(item NewsItem) string {
	if item.Bare != "" {
		return CleanText(item.Bare)
	}

	var parts []string
	for _, v := range []string{item.Title, item.Headline, item.Summary, item.Description, item.Content, item.Text} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}

	if len(parts) == 0 {
		for _, v := range item.Extra {
			v = strings.TrimSpace(v)
			if utf8.RuneCountInString(v) <= minFallbackLen {
				continue
			}
			parts = append(parts, v)
			if len(parts) >= maxFallbackFields {
				break
			}
		}
	}

	return CleanText(strings.Join(parts, " "))
}

var (
	markupRe   = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	documentRe = regexp.MustCompile(`(?i)<(html|body|article)[\s>]`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// placeholderURL readability 解析需要一个页面地址用于补全相对链接
var placeholderURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// CleanText 去掉文本中的 HTML 标记并折叠空白
func CleanText(s string) string {
	if markupRe.MatchString(s) {
		s = stripMarkup(s)
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func stripMarkup(s string) string {
	// 完整页面交给 readability 提取正文
	if documentRe.MatchString(s) {
		article, err := readability.FromReader(strings.NewReader(s), placeholderURL)
		if err == nil && strings.TrimSpace(article.TextContent) != "" {
			return article.TextContent
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return markupRe.ReplaceAllString(s, " ")
	}
	return doc.Text()
}
