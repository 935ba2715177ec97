package mailbox

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var verificationCodeRe = regexp.MustCompile(`\b(\d{6})\b`)

// ExtractLink returns the first anchor href in the HTML body whose URL
// contains the given fragment. Invite emails carry exactly one such link.
func ExtractLink(htmlBody, fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("failed to parse message body: %w", err)
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if strings.Contains(href, fragment) {
			found = href
			return false
		}
		return true
	})

	if found == "" {
		return "", fmt.Errorf("no link containing %q in message body", fragment)
	}
	return found, nil
}

// ExtractVerificationCode returns the first six-digit code in the message
// body, checking the visible text rather than raw markup so codes inside
// styling attributes are not matched by accident.
func ExtractVerificationCode(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("failed to parse message body: %w", err)
	}

	match := verificationCodeRe.FindString(doc.Text())
	if match == "" {
		return "", fmt.Errorf("no verification code in message body")
	}
	return match, nil
}
