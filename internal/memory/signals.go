package memory

import "strings"

// SignalExtractor derives topics, sentiment and importance for a single turn.
// The default implementation is a keyword heuristic; it can be swapped for a
// real NLU model without touching the engine.
type SignalExtractor interface {
	Topics(content string) []string
	Sentiment(content string) Sentiment
	Importance(msg ConversationMessage, profile UserProfile) int
}

const (
	maxTopicsPerMessage = 5
	minTopicTokenLen    = 4
	baseImportance      = 5
	minImportance       = 1
	maxImportance       = 10
)

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "these": {}, "those": {}, "with": {}, "from": {},
	"have": {}, "been": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "would": {}, "could": {}, "should": {}, "about": {},
	"there": {}, "their": {}, "them": {}, "then": {}, "than": {}, "your": {},
	"will": {}, "just": {}, "into": {}, "some": {}, "very": {}, "also": {},
	"because": {}, "really": {}, "want": {}, "need": {}, "know": {},
	"please": {}, "thanks": {}, "thank": {},
}

var positiveWords = []string{
	"great", "good", "love", "like", "awesome", "excellent", "amazing",
	"helpful", "thanks", "thank", "perfect", "nice", "happy", "cool",
	"wonderful",
}

var negativeWords = []string{
	"bad", "hate", "terrible", "awful", "wrong", "horrible", "useless",
	"annoying", "angry", "frustrated", "disappointing", "broken",
}

var personalInfoPhrases = []string{
	"my name", "i am", "i'm", "i like", "i love", "i work", "i live",
	"i prefer", "my favorite", "my favourite", "i'm learning",
}

// HeuristicExtractor is the built-in keyword/length signal strategy.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() HeuristicExtractor { return HeuristicExtractor{} }

// Topics lower-cases and tokenizes the content, drops short tokens and stop
// words, dedupes, and keeps the first five in order of appearance.
func (HeuristicExtractor) Topics(content string) []string {
	tokens := tokenize(content)
	seen := make(map[string]struct{}, len(tokens))
	var topics []string
	for _, tok := range tokens {
		if len(tok) < minTopicTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		topics = append(topics, tok)
		if len(topics) == maxTopicsPerMessage {
			break
		}
	}
	return topics
}

// Sentiment counts positive vs negative keyword hits; ties are neutral.
func (HeuristicExtractor) Sentiment(content string) Sentiment {
	lower := strings.ToLower(content)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Importance scores a message for retention priority. Base 5, bonuses for
// user turns, personal information, questions, interest overlap and explicit
// feedback, clamped to [1,10].
func (e HeuristicExtractor) Importance(msg ConversationMessage, profile UserProfile) int {
	score := baseImportance
	lower := strings.ToLower(msg.Content)

	if msg.Role == RoleUser {
		score += 2
	}
	if containsAny(lower, personalInfoPhrases) {
		score += 3
	}
	if strings.Contains(msg.Content, "?") {
		score += 1
	}
	if topicsIntersect(e.Topics(msg.Content), profile.Interests) {
		score += 2
	}
	if msg.Metadata.UserFeedback != "" {
		score += 3
	}

	if score > maxImportance {
		return maxImportance
	}
	if score < minImportance {
		return minImportance
	}
	return score
}

func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'' {
			return false
		}
		return true
	})
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func topicsIntersect(topics, interests []string) bool {
	if len(topics) == 0 || len(interests) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(interests))
	for _, i := range interests {
		set[strings.ToLower(i)] = struct{}{}
	}
	for _, t := range topics {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
