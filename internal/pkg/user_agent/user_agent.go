package user_agent

import (
	_ "embed"
	"fmt"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	Unknown       = "Unknown"
)

type UserAgent struct {
	UserAgent string
	Device    string
	Browser   string
	OS        string
}

//go:embed rules.yml
var defaultRules []byte

// RuleEntry is one (pattern, label) pair of the rule table.
type RuleEntry struct {
	Label string `yaml:"label"`
	Regex string `yaml:"regex"`
}

// RuleSet is the decoded rule table. Each list is ordered by precedence.
type RuleSet struct {
	Device  []RuleEntry `yaml:"device"`
	Browser []RuleEntry `yaml:"browser"`
	OS      []RuleEntry `yaml:"os"`
}

type rule struct {
	label string
	regex *pcre.Regexp
}

// Classifier evaluates compiled rules top to bottom; the first match wins.
type Classifier struct {
	device  []rule
	browser []rule
	os      []rule
}

// NewClassifier compiles a YAML rule table.
func NewClassifier(data []byte) (*Classifier, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("error parsing user agent rules: %w", err)
	}

	device, err := compileRules("device", set.Device)
	if err != nil {
		return nil, err
	}
	browser, err := compileRules("browser", set.Browser)
	if err != nil {
		return nil, err
	}
	os, err := compileRules("os", set.OS)
	if err != nil {
		return nil, err
	}

	return &Classifier{device: device, browser: browser, os: os}, nil
}

func compileRules(group string, entries []RuleEntry) ([]rule, error) {
	rules := make([]rule, 0, len(entries))
	for i, entry := range entries {
		if entry.Label == "" {
			return nil, fmt.Errorf("%s rule %d has no label", group, i)
		}
		regex, err := pcre.Compile(entry.Regex)
		if err != nil {
			return nil, fmt.Errorf("error compiling %s rule %q: %w", group, entry.Label, err)
		}
		rules = append(rules, rule{label: entry.Label, regex: regex})
	}
	return rules, nil
}

func firstMatch(rules []rule, userAgent, fallback string) string {
	for _, r := range rules {
		if r.regex.MatchString(userAgent) {
			return r.label
		}
	}
	return fallback
}

// Parse classifies a raw user-agent string. Empty or unrecognized input
// yields desktop with Unknown browser and OS.
func (c *Classifier) Parse(userAgent string) UserAgent {
	ua := UserAgent{
		UserAgent: userAgent,
		Device:    DeviceDesktop,
		Browser:   Unknown,
		OS:        Unknown,
	}
	if userAgent == "" {
		return ua
	}

	ua.Device = firstMatch(c.device, userAgent, DeviceDesktop)
	ua.Browser = firstMatch(c.browser, userAgent, Unknown)
	ua.OS = firstMatch(c.os, userAgent, Unknown)
	return ua
}

var (
	defaultClassifier *Classifier
	once              sync.Once
)

func getClassifier() *Classifier {
	once.Do(func() {
		c, err := NewClassifier(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("user_agent: embedded rules are invalid: %v", err))
		}
		defaultClassifier = c
	})
	return defaultClassifier
}

// ParseUserAgent classifies a user-agent string with the embedded rule table.
func ParseUserAgent(userAgent string) UserAgent {
	return getClassifier().Parse(userAgent)
}
