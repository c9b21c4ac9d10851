// Package relevance ranks tasks against the website currently being viewed.
package relevance

import (
	"math"
	"sort"
	"strings"

	"tasklens/internal/pattern"
	"tasklens/pkg/types"
)

// Scorer computes relevance scores for (task, website context) pairs.
type Scorer struct {
	config  ScorerConfig
	matcher *pattern.Matcher
	rules   *RuleSet
}

// ScorerConfig represents configuration for relevance scoring
type ScorerConfig struct {
	BaseScore        float64                            `json:"base_score"`
	UsageBonusPerUse float64                            `json:"usage_bonus_per_use"`
	UsageBonusCap    float64                            `json:"usage_bonus_cap"`
	DomainMatchBonus float64                            `json:"domain_match_bonus"`
	URLMatchBonus    float64                            `json:"url_match_bonus"`
	KeywordHitBonus  float64                            `json:"keyword_hit_bonus"`
	CategoryKeywords map[types.WebsiteCategory][]string `json:"category_keywords"`
}

// DefaultScorerConfig returns default scoring configuration
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		BaseScore:        1.0,
		UsageBonusPerUse: 0.1,
		UsageBonusCap:    5.0,
		DomainMatchBonus: 10.0,
		URLMatchBonus:    5.0,
		KeywordHitBonus:  2.0,
		CategoryKeywords: map[types.WebsiteCategory][]string{
			types.CategorySocialMedia: {
				"post", "share", "like", "comment", "follow",
			},
			types.CategoryEcommerce: {
				"buy", "cart", "product", "price", "order",
			},
			types.CategoryProfessional: {
				"job", "career", "resume", "work",
			},
			types.CategoryNewsContent: {
				"article", "news", "read", "story", "report",
			},
			types.CategoryTechnical: {
				"code", "api", "debug", "documentation", "repository",
			},
			types.CategoryEntertainment: {
				"watch", "video", "play", "stream", "music",
			},
		},
	}
}

// NewScorer creates a scorer with default configuration and built-in
// association rules.
func NewScorer(matcher *pattern.Matcher) *Scorer {
	return NewScorerWithConfig(DefaultScorerConfig(), matcher, BuiltinRules())
}

// NewScorerWithConfig creates a scorer with custom configuration.
func NewScorerWithConfig(config ScorerConfig, matcher *pattern.Matcher, rules *RuleSet) *Scorer {
	return &Scorer{
		config:  config,
		matcher: matcher,
		rules:   rules,
	}
}

// Score computes the relevance score of task for ctx. Disabled tasks score
// zero; everything else accumulates a base score, a capped usage bonus,
// per-pattern domain/URL match bonuses and a category keyword bonus.
// The result is deterministic and never negative.
func (s *Scorer) Score(task *types.Task, ctx *types.WebsiteContext) float64 {
	if task == nil || ctx == nil {
		return 0
	}
	if !task.Enabled {
		return 0
	}

	score := s.config.BaseScore
	score += math.Min(float64(task.UsageCount)*s.config.UsageBonusPerUse, s.config.UsageBonusCap)

	url := ctx.URL()
	for _, p := range task.WebsitePatterns {
		if s.matcher.Matches(p, ctx.Domain) {
			score += s.config.DomainMatchBonus
		}
		if s.matcher.Matches(p, url) {
			score += s.config.URLMatchBonus
		}
	}

	score += s.categoryBonus(task, ctx)
	return score
}

// categoryBonus counts how many of the context category's keywords appear
// as substrings in the task's text, worth KeywordHitBonus points each.
func (s *Scorer) categoryBonus(task *types.Task, ctx *types.WebsiteContext) float64 {
	category := ctx.Category
	if category == "" {
		category = s.rules.CategoryFor(ctx.Domain)
	}

	keywords, ok := s.config.CategoryKeywords[category]
	if !ok {
		return 0
	}

	content := strings.ToLower(task.Name + " " + task.Description + " " + task.PromptTemplate)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			hits++
		}
	}
	return float64(hits) * s.config.KeywordHitBonus
}

// Rank filters tasks to positive scores and sorts them by score, then
// usage count, then creation time, all descending. The ordering is stable
// and deterministic given identical inputs.
func (s *Scorer) Rank(tasks []types.Task, ctx *types.WebsiteContext) []types.Task {
	type scored struct {
		task  types.Task
		score float64
	}

	candidates := make([]scored, 0, len(tasks))
	for i := range tasks {
		if sc := s.Score(&tasks[i], ctx); sc > 0 {
			candidates = append(candidates, scored{task: tasks[i], score: sc})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.task.UsageCount != b.task.UsageCount {
			return a.task.UsageCount > b.task.UsageCount
		}
		return a.task.CreatedAt.After(b.task.CreatedAt)
	})

	ranked := make([]types.Task, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.task
	}
	return ranked
}
