package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Extraction holds the structured fields pulled from a goal-related message.
//
// For create intents, Objective and KeyResults are populated. For update
// intents, Value, Unit, and IsPercentage describe the reported progress.
type Extraction struct {
	// Objective is the goal text for create intents.
	Objective string

	// KeyResults are the measurable targets found in (or synthesized for)
	// a create intent.
	KeyResults []KeyResultDraft

	// Value is the progress value for update intents.
	Value float64

	// Unit is the unit word attached to Value ("%" for percentages).
	Unit string

	// IsPercentage reports that Value is a percentage rather than an
	// absolute completion count.
	IsPercentage bool
}

// KeyResultDraft is a key result proposed from message text, before it is
// persisted.
type KeyResultDraft struct {
	Title       string
	TargetValue float64
	Unit        string
}

// patternExtractor pairs a compiled pattern with the code that turns its
// match into extraction fields. Patterns are tried in order; the first match
// wins.
type patternExtractor struct {
	pattern *regexp.Regexp
	apply   func(match []string, out *Extraction)
}

// maxObjectiveLength bounds the fallback objective taken from the raw
// message.
const maxObjectiveLength = 100

// maxKeyResults caps how many key results are read out of one message.
const maxKeyResults = 3

func captureObjective(match []string, out *Extraction) {
	out.Objective = strings.TrimSpace(match[1])
}

// Objective lead-in patterns, most specific first.
var objectivePatterns = []patternExtractor{
	{regexp.MustCompile(`(?i)\bmy goal is\s+(?:to\s+)?(.+)`), captureObjective},
	{regexp.MustCompile(`(?i)\bi want to\s+(.+)`), captureObjective},
	{regexp.MustCompile(`(?i)\bi plan to\s+(.+)`), captureObjective},
	{regexp.MustCompile(`(?i)\bi would like to\s+(.+)`), captureObjective},
	{regexp.MustCompile(`我的目标是(.+)`), captureObjective},
	{regexp.MustCompile(`我想要?(.+)`), captureObjective},
	{regexp.MustCompile(`我要(.+)`), captureObjective},
	{regexp.MustCompile(`(?:创建|制定|设定)(?:一个)?(?:新的)?目标[:：]?\s*(.*)`), captureObjective},
}

// keyResultPattern matches "<integer><unit-word>" occurrences such as
// "3道" or "100 pages".
var keyResultPattern = regexp.MustCompile(`(\d+)\s*([A-Za-z]+|\p{Han})`)

// Update patterns: a completion count first, then a percentage.
var (
	completionPattern = regexp.MustCompile(`(?:完成了?|做了|(?i:completed|finished|did))\s*(\d+(?:\.\d+)?)\s*([A-Za-z]+|\p{Han})?`)
	percentPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	percentCNPattern  = regexp.MustCompile(`百分之(\d+(?:\.\d+)?)`)
)

// ExtractCreate pulls the objective and key results out of a create-intent
// message.
//
// The objective comes from the first matching lead-in pattern; when none
// matches, the raw message truncated to 100 characters is used. Key results
// come from numeric "<count><unit>" occurrences (at most three); when the
// message has none, one to three generic key results are synthesized from
// the conversation topics.
func ExtractCreate(message string, convCtx *Context) *Extraction {
	out := &Extraction{}

	for _, pe := range objectivePatterns {
		if match := pe.pattern.FindStringSubmatch(message); match != nil {
			pe.apply(match, out)
			break
		}
	}
	if out.Objective == "" {
		out.Objective = truncateRunes(strings.TrimSpace(message), maxObjectiveLength)
	}

	matches := keyResultPattern.FindAllStringSubmatch(message, maxKeyResults)
	for _, match := range matches {
		target, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		out.KeyResults = append(out.KeyResults, KeyResultDraft{
			Title:       fmt.Sprintf("完成 %s%s", match[1], match[2]),
			TargetValue: target,
			Unit:        match[2],
		})
	}

	if len(out.KeyResults) == 0 {
		out.KeyResults = genericKeyResults(message, convCtx)
	}

	return out
}

// ExtractUpdate pulls the reported progress value out of an update-intent
// message.
//
// A completion-count pattern is tried first, then a percentage pattern. A
// percentage match overwrites the completion-count value when both appear;
// that precedence mirrors observed behavior and has not been confirmed as
// intentional.
func ExtractUpdate(message string) *Extraction {
	out := &Extraction{}

	if match := completionPattern.FindStringSubmatch(message); match != nil {
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			out.Value = v
			out.Unit = match[2]
		}
	}

	for _, re := range []*regexp.Regexp{percentPattern, percentCNPattern} {
		if match := re.FindStringSubmatch(message); match != nil {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				out.Value = v
				out.Unit = "%"
				out.IsPercentage = true
			}
			break
		}
	}

	return out
}

// genericKeyResults synthesizes fallback key results from topic keywords in
// the message and the recent conversation.
func genericKeyResults(message string, convCtx *Context) []KeyResultDraft {
	lower := lowerFold(message)

	var drafts []KeyResultDraft
	if containsAny(lower, topicCues[TopicProgramming]) || convCtx.HasTopic(TopicProgramming) {
		drafts = append(drafts, KeyResultDraft{Title: "完成编程练习", TargetValue: 10, Unit: "题"})
	}
	if containsAny(lower, topicCues[TopicLearning]) || convCtx.HasTopic(TopicLearning) {
		drafts = append(drafts, KeyResultDraft{Title: "完成学习章节", TargetValue: 10, Unit: "章"})
	}
	if containsAny(lower, topicCues[TopicProjectDevelopment]) || convCtx.HasTopic(TopicProjectDevelopment) {
		drafts = append(drafts, KeyResultDraft{Title: "完成项目里程碑", TargetValue: 3, Unit: "个"})
	}

	if len(drafts) == 0 {
		drafts = append(drafts, KeyResultDraft{Title: "达成目标进度", TargetValue: 100, Unit: "%"})
	}
	if len(drafts) > maxKeyResults {
		drafts = drafts[:maxKeyResults]
	}
	return drafts
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
