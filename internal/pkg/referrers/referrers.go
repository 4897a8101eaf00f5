package referrers

import (
	"net/url"
	"strings"
)

// Source is the traffic category of a referrer.
type Source string

const (
	SourceDirect   Source = "Direct"
	SourceInternal Source = "Internal"
	SourceSearch   Source = "Search"
	SourceSocial   Source = "Social"
	SourceReferral Source = "Referral"
)

type category int

const (
	categoryOther category = iota
	categorySearch
	categorySocial
)

type knownHost struct {
	name     string
	category category
}

func search(name string) knownHost { return knownHost{name: name, category: categorySearch} }
func social(name string) knownHost { return knownHost{name: name, category: categorySocial} }
func other(name string) knownHost  { return knownHost{name: name, category: categoryOther} }

// knownHosts maps registrable hostnames to a display name and category.
var knownHosts = map[string]knownHost{
	"google.com":       search("Google"),
	"bing.com":         search("Bing"),
	"duckduckgo.com":   search("DuckDuckGo"),
	"yahoo.com":        search("Yahoo"),
	"search.yahoo.com": search("Yahoo"),
	"baidu.com":        search("Baidu"),
	"yandex.ru":        search("Yandex"),
	"yandex.com":       search("Yandex"),
	"ecosia.org":       search("Ecosia"),
	"kagi.com":         search("Kagi"),
	"search.brave.com": search("Brave Search"),
	"startpage.com":    search("Startpage"),
	"qwant.com":        search("Qwant"),
	"perplexity.ai":    search("Perplexity"),

	"x.com":                social("X/Twitter"),
	"twitter.com":          social("X/Twitter"),
	"t.co":                 social("X/Twitter"),
	"facebook.com":         social("Facebook"),
	"fb.com":               social("Facebook"),
	"instagram.com":        social("Instagram"),
	"linkedin.com":         social("LinkedIn"),
	"lnkd.in":              social("LinkedIn"),
	"tiktok.com":           social("TikTok"),
	"pinterest.com":        social("Pinterest"),
	"reddit.com":           social("Reddit"),
	"threads.net":          social("Threads"),
	"bsky.app":             social("Bluesky"),
	"mastodon.social":      social("Mastodon"),
	"youtube.com":          social("YouTube"),
	"youtu.be":             social("YouTube"),
	"snapchat.com":         social("Snapchat"),
	"discord.com":          social("Discord"),
	"discordapp.com":       social("Discord"),
	"whatsapp.com":         social("WhatsApp"),
	"telegram.org":         social("Telegram"),
	"t.me":                 social("Telegram"),
	"news.ycombinator.com": social("Hacker News"),
	"lobste.rs":            social("Lobsters"),

	"producthunt.com":   other("Product Hunt"),
	"indiehackers.com":  other("Indie Hackers"),
	"dev.to":            other("DEV Community"),
	"hashnode.com":      other("Hashnode"),
	"medium.com":        other("Medium"),
	"substack.com":      other("Substack"),
	"github.com":        other("GitHub"),
	"gitlab.com":        other("GitLab"),
	"stackoverflow.com": other("Stack Overflow"),
	"quora.com":         other("Quora"),
	"theguardian.com":   other("The Guardian"),
	"bbc.co.uk":         other("BBC"),
	"nytimes.com":       other("NY Times"),
	"mail.google.com":   other("Gmail"),
	"outlook.live.com":  other("Outlook"),
	"bit.ly":            other("Bitly"),
}

// Hostname extracts the lowercase host of a referrer URL without a leading "www.".
// Referrers without a scheme are parsed as if they had one.
func Hostname(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// lookup matches the host exactly, then as a subdomain of a known host.
func lookup(hostname string) (knownHost, bool) {
	if known, ok := knownHosts[hostname]; ok {
		return known, true
	}
	for labels := hostname; ; {
		dot := strings.IndexByte(labels, '.')
		if dot < 0 {
			break
		}
		labels = labels[dot+1:]
		if known, ok := knownHosts[labels]; ok {
			return known, true
		}
	}
	return knownHost{}, false
}

// isGoogle covers Google's country domains (google.co.uk, google.com.br, ...).
func isGoogle(hostname string) bool {
	return strings.HasPrefix(hostname, "google.") || strings.Contains(hostname, ".google.")
}

type rule struct {
	source  Source
	matches func(referrer, hostname, siteHost string) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{SourceDirect, func(referrer, _, _ string) bool {
		return strings.TrimSpace(referrer) == ""
	}},
	{SourceInternal, func(_, hostname, siteHost string) bool {
		return siteHost != "" && hostname == siteHost
	}},
	{SourceSearch, func(_, hostname, _ string) bool {
		if known, ok := lookup(hostname); ok {
			return known.category == categorySearch
		}
		return isGoogle(hostname)
	}},
	{SourceSocial, func(_, hostname, _ string) bool {
		known, ok := lookup(hostname)
		return ok && known.category == categorySocial
	}},
}

// Classify assigns a referrer to a traffic source. siteHost is the blog's own
// host; it is normalized the same way as the referrer host.
func Classify(referrer, siteHost string) Source {
	hostname := Hostname(referrer)
	siteHost = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(siteHost)), "www.")

	for _, r := range rules {
		if r.matches(referrer, hostname, siteHost) {
			return r.source
		}
	}
	return SourceReferral
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// Unknown hostnames are returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(hostname), "www.")

	if known, ok := lookup(hostname); ok {
		return known.name
	}
	if isGoogle(hostname) {
		return "Google"
	}

	return capitalizeFirst(hostname)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
