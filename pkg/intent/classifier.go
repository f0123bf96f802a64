// Package intent classifies free-text chat messages into goal-tracking
// actions and extracts the structured fields those actions need.
//
// Classification is two-staged: a coarse keyword gate decides whether the
// message is goal-related at all, then per-category keyword scoring picks one
// of the four action categories. Both stages are adjusted by a lightweight
// analysis of the recent conversation turns, so that short follow-ups like
// "done with three of them" are still recognized as progress updates.
//
// The classifier never fails: a message it cannot place degrades to the
// suggest category with zero confidence.
package intent

// Category is the action category of a goal-related message.
type Category string

const (
	// CategoryCreate requests creation of a new goal.
	CategoryCreate Category = "create"

	// CategoryUpdate reports progress against an existing key result.
	CategoryUpdate Category = "update"

	// CategoryQuery asks about the state of existing goals.
	CategoryQuery Category = "query"

	// CategorySuggest asks for advice or planning help.
	CategorySuggest Category = "suggest"
)

// Turn is one prior message in the conversation.
type Turn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Intent is the classification outcome for one message.
type Intent struct {
	// IsGoalRelated reports whether the message passed the coarse gate.
	IsGoalRelated bool

	// Category is the selected action category.
	Category Category

	// Confidence is an advisory score in [0,1]. It never overrides the
	// category choice.
	Confidence float64

	// Extracted holds the structured fields pulled from the message
	// (nil for query/suggest, which carry no fields).
	Extracted *Extraction
}

// Keyword gate: a message containing any of these terms is goal-related.
var gateKeywords = []string{
	"目标", "计划", "创建", "制定", "完成", "进度", "状态", "建议", "关键结果",
	"goal", "objective", "okr", "plan", "create", "complete", "progress",
	"status", "suggest", "key result",
}

// Per-category keyword sets. A term must appear in exactly one set so the
// raw counts stay disjoint.
var categoryKeywords = map[Category][]string{
	CategoryCreate: {
		"创建", "新建", "制定", "设定", "我想", "我要", "目标是",
		"create", "new goal", "set a goal", "want to", "plan to",
	},
	CategoryUpdate: {
		"完成", "达成", "进度", "更新", "做了",
		"completed", "finished", "progress", "update", "done",
	},
	CategoryQuery: {
		"查询", "查看", "状态", "怎么样", "列出",
		"show", "status", "list", "query", "how is", "how are",
	},
	CategorySuggest: {
		"建议", "推荐", "怎么办", "如何",
		"suggest", "recommend", "advice", "help me", "how to",
	},
}

// tieBreakOrder fixes which category wins on equal scores.
var tieBreakOrder = []Category{CategoryUpdate, CategoryCreate, CategoryQuery, CategorySuggest}

// Confidence tuning. The weights and caps are provisional defaults with no
// evaluation data behind them; confidence is advisory only.
var confidenceWeights = map[Category]float64{
	CategoryCreate:  0.3,
	CategoryUpdate:  0.3,
	CategoryQuery:   0.25,
	CategorySuggest: 0.25,
}

var confidenceCaps = map[Category]float64{
	CategoryCreate:  0.95,
	CategoryUpdate:  0.95,
	CategoryQuery:   0.9,
	CategorySuggest: 0.9,
}

const contextBonusWeight = 0.1

// Classifier maps messages to intents. It is stateless and safe for
// concurrent use.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify analyzes one message in the context of the recent conversation.
//
// Parameters:
//   - message: The raw user message.
//   - history: Prior conversation turns, oldest first. Only the last five
//     are consulted.
//
// Returns the classified intent. Classify never fails; an unclassifiable
// message yields CategorySuggest with zero confidence.
func (c *Classifier) Classify(message string, history []Turn) *Intent {
	lower := lowerFold(message)
	convCtx := AnalyzeContext(history, message)

	goalRelated := containsAny(lower, gateKeywords) || convCtx.IsFollowUp || convCtx.IsProgressUpdate

	scores := make(map[Category]int, len(categoryKeywords))
	for category, keywords := range categoryKeywords {
		scores[category] = countMatches(lower, keywords)
	}

	bonus := make(map[Category]int, 2)
	if convCtx.IsProgressUpdate {
		bonus[CategoryUpdate] += 2
	}
	if convCtx.HasTopic(TopicGoalManagement) {
		bonus[CategoryQuery]++
	}

	category, raw, bonusPoints, any := argmax(scores, bonus)
	if !any {
		// Nothing scored: degrade to a suggestion request.
		return &Intent{
			IsGoalRelated: goalRelated,
			Category:      CategorySuggest,
			Confidence:    0,
		}
	}

	confidence := float64(raw)*confidenceWeights[category] + float64(bonusPoints)*contextBonusWeight
	if cap := confidenceCaps[category]; confidence > cap {
		confidence = cap
	}

	intent := &Intent{
		IsGoalRelated: goalRelated,
		Category:      category,
		Confidence:    confidence,
	}

	if goalRelated {
		switch category {
		case CategoryCreate:
			intent.Extracted = ExtractCreate(message, convCtx)
		case CategoryUpdate:
			intent.Extracted = ExtractUpdate(message)
		}
	}

	return intent
}

// argmax picks the highest scoring category, resolving ties by the fixed
// order update > create > query > suggest. It reports whether any category
// scored at all.
func argmax(scores, bonus map[Category]int) (Category, int, int, bool) {
	best := CategorySuggest
	bestTotal := 0
	bestRaw := 0
	bestBonus := 0
	any := false

	for _, category := range tieBreakOrder {
		total := scores[category] + bonus[category]
		if total > 0 {
			any = true
		}
		if total > bestTotal {
			best = category
			bestTotal = total
			bestRaw = scores[category]
			bestBonus = bonus[category]
		}
	}

	return best, bestRaw, bestBonus, any
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if containsFold(lower, kw) {
			n++
		}
	}
	return n
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if containsFold(lower, kw) {
			return true
		}
	}
	return false
}
