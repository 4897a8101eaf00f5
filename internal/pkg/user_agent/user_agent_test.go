package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogstats/internal/pkg/user_agent"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedDevice  string
		expectedBrowser string
		expectedOS      string
	}{
		{
			name:            "Chrome on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			expectedDevice:  "desktop",
			expectedBrowser: "Chrome",
			expectedOS:      "Windows",
		},
		{
			name:            "Edge on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			expectedDevice:  "desktop",
			expectedBrowser: "Edge",
			expectedOS:      "Windows",
		},
		{
			name:            "Safari on macOS",
			userAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			expectedDevice:  "desktop",
			expectedBrowser: "Safari",
			expectedOS:      "macOS",
		},
		{
			name:            "Firefox on Linux",
			userAgent:       "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			expectedDevice:  "desktop",
			expectedBrowser: "Firefox",
			expectedOS:      "Linux",
		},
		{
			name:            "Safari on iPhone",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedDevice:  "mobile",
			expectedBrowser: "Safari",
			expectedOS:      "iOS",
		},
		{
			name:            "Chrome on Android phone",
			userAgent:       "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			expectedDevice:  "mobile",
			expectedBrowser: "Chrome",
			expectedOS:      "Android",
		},
		{
			name:            "Safari on iPad is a tablet even with a Mobile token",
			userAgent:       "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedDevice:  "tablet",
			expectedBrowser: "Safari",
			expectedOS:      "iOS",
		},
		{
			name:            "Android tablet without Mobile token",
			userAgent:       "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			expectedDevice:  "tablet",
			expectedBrowser: "Chrome",
			expectedOS:      "Android",
		},
		{
			name:            "Chrome on iOS",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1",
			expectedDevice:  "mobile",
			expectedBrowser: "Chrome",
			expectedOS:      "iOS",
		},
		{
			name:            "curl",
			userAgent:       "curl/8.4.0",
			expectedDevice:  "desktop",
			expectedBrowser: "Unknown",
			expectedOS:      "Unknown",
		},
		{
			name:            "empty",
			userAgent:       "",
			expectedDevice:  "desktop",
			expectedBrowser: "Unknown",
			expectedOS:      "Unknown",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)

			assert.Equal(t, tc.expectedDevice, result.Device)
			assert.Equal(t, tc.expectedBrowser, result.Browser)
			assert.Equal(t, tc.expectedOS, result.OS)
		})
	}
}

func TestNewClassifier(t *testing.T) {
	t.Run("rule order decides between overlapping patterns", func(t *testing.T) {
		rules := []byte(`
browser:
  - label: First
    regex: 'shared'
  - label: Second
    regex: 'shared|other'
`)
		c, err := user_agent.NewClassifier(rules)
		require.NoError(t, err)

		assert.Equal(t, "First", c.Parse("a shared token").Browser)
		assert.Equal(t, "Second", c.Parse("an other token").Browser)
		assert.Equal(t, "Unknown", c.Parse("nothing").Browser)
	})

	t.Run("rejects invalid patterns", func(t *testing.T) {
		_, err := user_agent.NewClassifier([]byte("os:\n  - label: Broken\n    regex: '(unclosed'\n"))
		assert.Error(t, err)
	})

	t.Run("rejects rules without a label", func(t *testing.T) {
		_, err := user_agent.NewClassifier([]byte("device:\n  - regex: 'x'\n"))
		assert.Error(t, err)
	})
}
