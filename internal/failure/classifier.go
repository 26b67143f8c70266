// Package failure classifies agent execution errors, files them into repair
// bays, and manages the resume jobs that replay repaired records. It is the
// terminal sink for failures that survived inline retry; nothing here retries
// automatically.
package failure

import "regexp"

// Class labels a failure as transient or not.
type Class string

const (
	ClassTemporary Class = "temporary"
	ClassPermanent Class = "permanent"
)

// Rule is one ordered classification rule. First match wins; errors matching
// no rule classify as permanent.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Class   Class
}

// DefaultRules returns the built-in transient indicators. Rules are data, not
// code: callers may prepend or replace them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "rate_limit",
			Pattern: regexp.MustCompile(`(?i)rate.?limit|too many requests|\b429\b`),
			Class:   ClassTemporary,
		},
		{
			Name:    "timeout",
			Pattern: regexp.MustCompile(`(?i)timeout|timed out|deadline exceeded`),
			Class:   ClassTemporary,
		},
		{
			Name:    "unavailable",
			Pattern: regexp.MustCompile(`(?i)temporarily unavailable|service unavailable|\b50[234]\b|try again`),
			Class:   ClassTemporary,
		},
		{
			Name:    "connection",
			Pattern: regexp.MustCompile(`(?i)connection (reset|refused|closed)|econnreset|broken pipe|no such host`),
			Class:   ClassTemporary,
		},
	}
}

// Classifier matches error messages against an ordered rule list.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier with the given rules. A nil or empty
// rule list falls back to DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the class for an error message plus the name of the rule
// that matched, or "default" when none did.
func (c *Classifier) Classify(message string) (Class, string) {
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(message) {
			return rule.Class, rule.Name
		}
	}
	return ClassPermanent, "default"
}
