package memory

import (
	"reflect"
	"testing"
)

func TestTopicsDropShortAndStopWords(t *testing.T) {
	x := NewHeuristicExtractor()
	topics := x.Topics("This is about distributed systems and about caching")
	want := []string{"distributed", "systems", "caching"}
	if !reflect.DeepEqual(topics, want) {
		t.Fatalf("Topics() = %v, want %v", topics, want)
	}
}

func TestTopicsCappedAtFive(t *testing.T) {
	x := NewHeuristicExtractor()
	topics := x.Topics("alpha bravo charlie delta echo4 foxtrot golf hotel")
	if len(topics) != 5 {
		t.Fatalf("len(Topics()) = %d, want 5", len(topics))
	}
}

func TestTopicsDeduplicate(t *testing.T) {
	x := NewHeuristicExtractor()
	topics := x.Topics("python python PYTHON golang")
	want := []string{"python", "golang"}
	if !reflect.DeepEqual(topics, want) {
		t.Fatalf("Topics() = %v, want %v", topics, want)
	}
}

func TestSentiment(t *testing.T) {
	x := NewHeuristicExtractor()
	cases := []struct {
		content string
		want    Sentiment
	}{
		{"this is great and I love it", SentimentPositive},
		{"this is terrible and broken", SentimentNegative},
		{"the sky is blue", SentimentNeutral},
		{"good but also bad", SentimentNeutral}, // tie
	}
	for _, tc := range cases {
		if got := x.Sentiment(tc.content); got != tc.want {
			t.Fatalf("Sentiment(%q) = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestImportanceBaseWithNoBonuses(t *testing.T) {
	x := NewHeuristicExtractor()
	msg := ConversationMessage{Role: RoleAssistant, Content: "the sky is blue today"}
	if got := x.Importance(msg, UserProfile{}); got != 5 {
		t.Fatalf("Importance() = %d, want base 5", got)
	}
}

func TestImportanceClampsAtTen(t *testing.T) {
	x := NewHeuristicExtractor()
	msg := ConversationMessage{
		Role:     RoleUser,
		Content:  "I am learning golang, do you like it?",
		Metadata: MessageMetadata{UserFeedback: "more of this"},
	}
	profile := UserProfile{Interests: []string{"golang"}}
	// 5 base + 2 user + 3 personal + 1 question + 2 interest + 3 feedback
	// would be 16; must clamp.
	if got := x.Importance(msg, profile); got != 10 {
		t.Fatalf("Importance() = %d, want clamped 10", got)
	}
}

func TestImportanceStaysInRange(t *testing.T) {
	x := NewHeuristicExtractor()
	contents := []string{
		"", "ok", "why?", "I am tired", "I love go, thanks for the great help!",
	}
	for _, c := range contents {
		for _, role := range []Role{RoleUser, RoleAssistant, RoleSystem} {
			got := x.Importance(ConversationMessage{Role: role, Content: c}, UserProfile{})
			if got < 1 || got > 10 {
				t.Fatalf("Importance(%q, %s) = %d, out of [1,10]", c, role, got)
			}
		}
	}
}

func TestSignalsScenarioLearningPython(t *testing.T) {
	x := NewHeuristicExtractor()
	content := "Hi, I am learning Python and I love programming"

	topics := x.Topics(content)
	allowed := map[string]bool{"learning": true, "python": true, "love": true, "programming": true}
	if len(topics) == 0 {
		t.Fatalf("Topics() empty, want subset of %v", allowed)
	}
	for _, topic := range topics {
		if !allowed[topic] {
			t.Fatalf("Topics() contains %q, want subset of %v", topic, allowed)
		}
	}

	if got := x.Sentiment(content); got != SentimentPositive {
		t.Fatalf("Sentiment() = %q, want positive", got)
	}

	msg := ConversationMessage{Role: RoleUser, Content: content}
	if got := x.Importance(msg, UserProfile{}); got != 10 {
		t.Fatalf("Importance() = %d, want 10 (5 base + 2 user + 3 personal)", got)
	}
}
