package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"InvestRadar/internal/domain"
)

var whitespaceExpr = regexp.MustCompile(`\s+`)

// StripHTML extracts plain text from markup; feeds routinely ship summaries
// wrapped in tags.
func StripHTML(text string) string {
	if text == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	return doc.Text()
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}

// TruncateWords bounds the text to maxWords words.
func TruncateWords(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}

// Normalize cleans title and body in place and stamps the content hash.
func Normalize(article domain.Article, maxWords int) domain.Article {
	article.Title = NormalizeWhitespace(StripHTML(article.Title))
	article.Body = TruncateWords(NormalizeWhitespace(StripHTML(article.Body)), maxWords)
	article.ContentHash = ContentHash(article.Title, article.Body)
	return article
}

// ContentHash is the deterministic fingerprint of normalized title+body.
// Lowercasing happens here only, so two articles differing in case or URL
// variant still collapse to the same logical item.
func ContentHash(title, body string) string {
	h := sha256.Sum256([]byte(strings.ToLower(title) + "\n" + strings.ToLower(body)))
	return hex.EncodeToString(h[:])
}
