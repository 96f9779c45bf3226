package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeMarkers are substrings that identify a defense page even when the
// remote answers 200.
var challengeMarkers = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"challenge-platform",
	"pardon our interruption",
	"access denied",
}

// DetectBlock classifies a response as a defense response. It returns the
// reason and true when the status code or body indicates blocking.
func DetectBlock(statusCode int, body []byte) (string, bool) {
	switch statusCode {
	case 429:
		return "rate_limit", true
	case 403:
		return "forbidden", true
	}

	if statusCode != 200 {
		return "", false
	}

	// a JSON API answering with HTML is a challenge page in disguise
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		if reason, ok := sniffChallengePage(trimmed); ok {
			return reason, true
		}
		return "html_response", true
	}

	lower := strings.ToLower(string(truncate(trimmed, 5000)))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}

	// suspiciously short 200 payload without an error field: skeleton page
	if len(trimmed) < 100 && !strings.Contains(lower, "error") {
		return "skeleton", true
	}

	return "", false
}

// sniffChallengePage parses an HTML body looking for CAPTCHA widgets or
// challenge scripts.
func sniffChallengePage(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	if doc.Find("form[action*='captcha'], div.g-recaptcha, div.h-captcha, iframe[src*='captcha']").Length() > 0 {
		return "captcha", true
	}

	found := ""
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if strings.Contains(src, "challenge-platform") {
			found = "challenge-platform"
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	title := strings.ToLower(doc.Find("title").Text())
	for _, marker := range challengeMarkers {
		if strings.Contains(title, marker) {
			return marker, true
		}
	}

	return "", false
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
