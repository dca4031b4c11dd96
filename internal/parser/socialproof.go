package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrSocialProofNotFound = errors.New("social proof not found")

// socialProofSelector is the element Amazon renders the "X bought in
// past month" tagline into. The ID is stable across marketplaces but
// the element is absent on most listings.
const socialProofSelector = "#social-proofing-faceout-title-tk_bought > span"

// blockedMarkers are phrases that only appear on interstitial or
// CAPTCHA pages. Matching is best effort; any hit counts as blocked.
var blockedMarkers = []string{
	"robot check",
	"type the characters you see",
	"enter the characters you see below",
	"api-services-support@amazon.com",
}

type SocialProofParser struct{}

func NewSocialProofParser() *SocialProofParser {
	return &SocialProofParser{}
}

// ExtractSocialProof returns the purchase-count tagline from a product
// page. Returns ErrSocialProofNotFound when the listing has no tagline;
// that is the common case, not a failure.
func (p *SocialProofParser) ExtractSocialProof(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Try the dedicated element first.
	text := strings.TrimSpace(doc.Find(socialProofSelector).First().Text())
	if text != "" && strings.Contains(strings.ToLower(text), "month") {
		return collapseSpace(text), nil
	}

	// Fall back to scanning leaf elements for the tagline wording.
	var found string
	doc.Find("span, div, p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		t := strings.TrimSpace(s.Text())
		lower := strings.ToLower(t)
		if strings.Contains(lower, "bought") && strings.Contains(lower, "month") {
			found = collapseSpace(t)
			return false
		}
		return true
	})

	if found != "" {
		return found, nil
	}

	return "", ErrSocialProofNotFound
}

// IsBlockedPage reports whether the page is a CAPTCHA or anti-bot
// interstitial rather than a product page.
func (p *SocialProofParser) IsBlockedPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable content is not a product page either.
		return true
	}

	if doc.Find("input#captchacharacters").Length() > 0 {
		return true
	}

	text := strings.ToLower(doc.Text())
	for _, marker := range blockedMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}

// ExtractTitle returns the product title, or "" when absent. Used for
// log and export context only.
func (p *SocialProofParser) ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return collapseSpace(doc.Find("#productTitle").First().Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
