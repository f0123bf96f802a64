package intent

import (
	"strings"
	"unicode"
)

// Topic tags derived from the recent conversation.
const (
	TopicGoalManagement     = "goal-management"
	TopicLearning           = "learning"
	TopicProjectDevelopment = "project-development"
	TopicProgramming        = "programming"
)

// Substring cues that map conversation text onto topic tags.
var topicCues = map[string][]string{
	TopicGoalManagement:     {"目标", "okr", "计划", "goal", "objective", "plan"},
	TopicLearning:           {"学习", "课程", "learn", "study", "course"},
	TopicProjectDevelopment: {"项目", "开发", "project", "develop"},
	TopicProgramming:        {"编程", "代码", "算法", "programming", "code", "algorithm"},
}

const (
	// contextWindow is how many trailing turns are consulted.
	contextWindow = 5

	// maxContextKeywords caps the tokens carried downstream.
	maxContextKeywords = 10

	// minTokenLength filters out short stop-word-ish tokens.
	minTokenLength = 3
)

// Context summarizes the recent conversation for classification.
type Context struct {
	// RecentTopics are the topic tags seen in the trailing turns.
	RecentTopics []string

	// Keywords are up to ten deduplicated tokens from the trailing turns,
	// for lightweight downstream matching.
	Keywords []string

	// IsFollowUp reports that the current message shares a token with the
	// recent turns, suggesting it continues an earlier thread.
	IsFollowUp bool

	// IsProgressUpdate reports that a goal was being created or discussed
	// recently and the current message talks about completion or progress.
	IsProgressUpdate bool
}

// HasTopic reports whether the tag appears among the recent topics.
func (c *Context) HasTopic(tag string) bool {
	for _, topic := range c.RecentTopics {
		if topic == tag {
			return true
		}
	}
	return false
}

// AnalyzeContext inspects the last turns of the conversation and the current
// message, deriving topic tags, shared tokens, and follow-up signals.
func AnalyzeContext(history []Turn, message string) *Context {
	recent := history
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}

	ctx := &Context{}

	var joined strings.Builder
	for _, turn := range recent {
		joined.WriteString(lowerFold(turn.Content))
		joined.WriteByte('\n')
	}
	recentText := joined.String()

	for topic, cues := range topicCues {
		if containsAny(recentText, cues) {
			ctx.RecentTopics = append(ctx.RecentTopics, topic)
		}
	}

	ctx.Keywords = extractTokens(recentText, maxContextKeywords)

	lowerMessage := lowerFold(message)
	for _, token := range ctx.Keywords {
		if strings.Contains(lowerMessage, token) {
			ctx.IsFollowUp = true
			break
		}
	}

	mentionedCreation := containsAny(recentText, []string{"创建", "目标", "create", "objective"})
	mentionsProgress := containsAny(lowerMessage, []string{"完成", "进度", "complete", "progress"})
	ctx.IsProgressUpdate = mentionedCreation && mentionsProgress

	return ctx
}

// extractTokens splits text on non-letter/digit runes and returns up to max
// deduplicated tokens longer than two runes.
func extractTokens(text string, max int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, max)
	for _, field := range fields {
		if len([]rune(field)) < minTokenLength {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
		if len(tokens) == max {
			break
		}
	}
	return tokens
}

func lowerFold(s string) string {
	return strings.ToLower(s)
}

func containsFold(lower, keyword string) bool {
	return strings.Contains(lower, strings.ToLower(keyword))
}
