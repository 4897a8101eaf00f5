package referrers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		siteHost string
		expected Source
	}{
		{"empty referrer is direct", "", "example.com", SourceDirect},
		{"whitespace referrer is direct", "   ", "example.com", SourceDirect},
		{"own host is internal", "https://example.com/blog/a", "example.com", SourceInternal},
		{"own host with www is internal", "https://www.example.com/", "example.com", SourceInternal},
		{"site host given with www", "https://example.com/", "www.example.com", SourceInternal},
		{"google search", "https://www.google.com/search?q=x", "example.com", SourceSearch},
		{"google country domain", "https://www.google.co.uk/", "example.com", SourceSearch},
		{"bing", "https://bing.com/search?q=go", "example.com", SourceSearch},
		{"duckduckgo", "https://duckduckgo.com/", "example.com", SourceSearch},
		{"twitter short links", "https://t.co/abc", "example.com", SourceSocial},
		{"facebook mobile subdomain", "https://m.facebook.com/story", "example.com", SourceSocial},
		{"hacker news", "https://news.ycombinator.com/item?id=1", "example.com", SourceSocial},
		{"gmail is not search", "https://mail.google.com/mail/u/0/", "example.com", SourceReferral},
		{"unknown blog", "https://someblog.dev/post", "example.com", SourceReferral},
		{"other site without a configured host", "https://example.com/", "", SourceReferral},
		{"internal is checked before search", "https://google.com/", "google.com", SourceInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.referrer, tt.siteHost))
		})
	}
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "google.com", Hostname("https://www.Google.com/search?q=x"))
	assert.Equal(t, "news.ycombinator.com", Hostname("news.ycombinator.com/item"))
	assert.Equal(t, "", Hostname(""))
}

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com", "Google"},
		{"google.com.br", "Google"},
		{"news.ycombinator.com", "Hacker News"},
		{"x.com", "X/Twitter"},
		{"www.reddit.com", "Reddit"},
		{"old.reddit.com", "Reddit"},
		{"mobile.twitter.com", "X/Twitter"},
		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},
		{"GOOGLE.COM", "Google"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, FriendlyName(tt.hostname))
		})
	}
}
