package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSocialProof(t *testing.T) {
	parser := NewSocialProofParser()

	tests := []struct {
		name     string
		html     string
		expected string
		hasError bool
	}{
		{
			name: "dedicated social proofing element",
			html: `<div id="social-proofing-faceout-title-tk_bought" class="a-section social-proofing-faceout-title">
						<span class="a-text-bold">2K+ bought in past month</span>
					</div>`,
			expected: "2K+ bought in past month",
			hasError: false,
		},
		{
			name: "dedicated element with surrounding whitespace",
			html: `<div id="social-proofing-faceout-title-tk_bought">
						<span>
							500+ bought in past
							month
						</span>
					</div>`,
			expected: "500+ bought in past month",
			hasError: false,
		},
		{
			name:     "fallback pattern in plain span",
			html:     `<div class="a-section"><span>300+ bought in past month</span></div>`,
			expected: "300+ bought in past month",
			hasError: false,
		},
		{
			name:     "fallback pattern in paragraph",
			html:     `<p>1K+ bought in past month</p>`,
			expected: "1K+ bought in past month",
			hasError: false,
		},
		{
			name: "dedicated element without month text is ignored",
			html: `<div id="social-proofing-faceout-title-tk_bought"><span>Best seller</span></div>
					<span>50+ bought in past month</span>`,
			expected: "50+ bought in past month",
			hasError: false,
		},
		{
			name:     "listing without tagline",
			html:     `<div id="productTitle">Some Product</div><span>In Stock</span>`,
			hasError: true,
		},
		{
			name:     "bought without month does not match",
			html:     `<span>Frequently bought together</span>`,
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parser.ExtractSocialProof(tt.html)

			if tt.hasError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSocialProofNotFound)
				assert.Empty(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestExtractSocialProofFromFullProductPage(t *testing.T) {
	parser := NewSocialProofParser()

	html := `<!DOCTYPE html>
<html>
<body>
	<span id="productTitle">Stainless Steel Water Bottle, 32oz</span>
	<div id="social-proofing-faceout-title-tk_bought" class="a-section a-spacing-none social-proofing-faceout-title">
		<span class="a-text-bold">4K+ bought in past month</span>
	</div>
	<div id="feature-bullets">
		<ul>
			<li>Keeps drinks cold for 24 hours</li>
		</ul>
	</div>
</body>
</html>`

	result, err := parser.ExtractSocialProof(html)
	require.NoError(t, err)
	assert.Equal(t, "4K+ bought in past month", result)
	assert.Equal(t, "Stainless Steel Water Bottle, 32oz", parser.ExtractTitle(html))
}

func TestIsBlockedPage(t *testing.T) {
	parser := NewSocialProofParser()

	tests := []struct {
		name    string
		html    string
		blocked bool
	}{
		{
			name: "captcha input field",
			html: `<form action="/errors/validateCaptcha">
						<input type="text" id="captchacharacters" name="field-keywords">
					</form>`,
			blocked: true,
		},
		{
			name:    "robot check banner",
			html:    `<title>Robot Check</title><body><h4>Robot Check</h4></body>`,
			blocked: true,
		},
		{
			name:    "character prompt",
			html:    `<body><p>Type the characters you see in this image:</p></body>`,
			blocked: true,
		},
		{
			name:    "api services interstitial",
			html:    `<body>To discuss automated access to Amazon data please contact api-services-support@amazon.com.</body>`,
			blocked: true,
		},
		{
			name: "regular product page",
			html: `<body>
					<span id="productTitle">Desk Lamp</span>
					<span>300+ bought in past month</span>
				</body>`,
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, parser.IsBlockedPage(tt.html))
		})
	}
}
