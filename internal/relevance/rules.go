package relevance

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tasklens/internal/pattern"
	"tasklens/pkg/types"
)

// RuleSet holds the domain-to-category association rules. Rules supply
// category affinity independent of any specific task and are consulted
// only when a context arrives without a detected category.
type RuleSet struct {
	rules   []types.AssociationRule
	matcher *pattern.Matcher
}

// BuiltinRules returns the built-in association rule set.
func BuiltinRules() *RuleSet {
	return NewRuleSet([]types.AssociationRule{
		{Name: "social-networks", Pattern: `(facebook|twitter|x|instagram|tiktok|reddit|mastodon)\.`, Category: types.CategorySocialMedia, Priority: 100, Enabled: true},
		{Name: "professional-networks", Pattern: `(linkedin|glassdoor|indeed|xing)\.`, Category: types.CategoryProfessional, Priority: 100, Enabled: true},
		{Name: "marketplaces", Pattern: `(amazon|ebay|etsy|aliexpress|shopify|walmart)\.`, Category: types.CategoryEcommerce, Priority: 90, Enabled: true},
		{Name: "shop-subdomains", Pattern: `^(shop|store|checkout)\.`, Category: types.CategoryEcommerce, Priority: 50, Enabled: true},
		{Name: "news-outlets", Pattern: `(news|bbc|cnn|reuters|guardian|nytimes|washingtonpost)\.`, Category: types.CategoryNewsContent, Priority: 90, Enabled: true},
		{Name: "developer-sites", Pattern: `(github|gitlab|stackoverflow|bitbucket)\.`, Category: types.CategoryTechnical, Priority: 100, Enabled: true},
		{Name: "docs-subdomains", Pattern: `^(docs|developer|api)\.`, Category: types.CategoryTechnical, Priority: 60, Enabled: true},
		{Name: "streaming", Pattern: `(youtube|netflix|twitch|spotify|hulu|vimeo)\.`, Category: types.CategoryEntertainment, Priority: 90, Enabled: true},
	})
}

// NewRuleSet creates a rule set. Rules are evaluated highest priority first.
func NewRuleSet(rules []types.AssociationRule) *RuleSet {
	sorted := make([]types.AssociationRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &RuleSet{
		rules:   sorted,
		matcher: pattern.NewMatcher(),
	}
}

// LoadRules reads an association rule set from a YAML file, replacing the
// built-in rules. Intended for deployments that tune category affinity.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var doc struct {
		Rules []types.AssociationRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	return NewRuleSet(doc.Rules), nil
}

// CategoryFor returns the category of the highest-priority enabled rule
// matching domain, or the general category when nothing matches.
func (r *RuleSet) CategoryFor(domain string) types.WebsiteCategory {
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		if r.matcher.Matches(rule.Pattern, domain) {
			return rule.Category
		}
	}
	return types.CategoryGeneral
}

// Rules returns a copy of the rule list in evaluation order.
func (r *RuleSet) Rules() []types.AssociationRule {
	out := make([]types.AssociationRule, len(r.rules))
	copy(out, r.rules)
	return out
}
