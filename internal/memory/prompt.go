package memory

import (
	"fmt"
	"strings"
)

const (
	promptHistoryWindow      = 5
	promptBehaviorsMax       = 3
	promptBehaviorsMinEffect = 0.7
)

// assemblePrompt renders the bounded instruction string handed to the
// downstream model: framing, user identity, style directive, current topic,
// the last few turns verbatim, interests, proven behaviors, and finally the
// new user message. Output is deterministic for a given context.
func assemblePrompt(mc *MemoryContext, userMessage string) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant with memory of this conversation.\n")

	if mc.Profile.Name != "" {
		fmt.Fprintf(&b, "The user's name is %s.\n", mc.Profile.Name)
	}

	fmt.Fprintf(&b, "Respond in a %s tone with %s answers.\n",
		styleWord(mc.Profile.Style.Formality), verbosityWord(mc.Profile.Style.Verbosity))

	if mc.Contextual.CurrentTopic != "" {
		fmt.Fprintf(&b, "The current topic is %s.\n", mc.Contextual.CurrentTopic)
	}

	if len(mc.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		start := len(mc.History) - promptHistoryWindow
		if start < 0 {
			start = 0
		}
		for _, msg := range mc.History[start:] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	if len(mc.Profile.Interests) > 0 {
		fmt.Fprintf(&b, "\nThe user is interested in: %s.\n",
			strings.Join(mc.Profile.Interests, ", "))
	}

	if directives := effectiveBehaviors(mc.Behaviors); len(directives) > 0 {
		b.WriteString("\nAdaptations that worked well before:\n")
		for _, d := range directives {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	fmt.Fprintf(&b, "\nUser: %s\n", userMessage)
	return b.String()
}

// effectiveBehaviors returns up to three behavior descriptions that proved
// themselves, in the order they were learned.
func effectiveBehaviors(behaviors []LearnedBehavior) []string {
	var out []string
	for _, lb := range behaviors {
		if lb.Effectiveness <= promptBehaviorsMinEffect {
			continue
		}
		out = append(out, lb.Description)
		if len(out) == promptBehaviorsMax {
			break
		}
	}
	return out
}

func styleWord(formality string) string {
	switch formality {
	case "formal":
		return "formal"
	case "casual":
		return "casual"
	default:
		return "natural"
	}
}

func verbosityWord(verbosity string) string {
	switch verbosity {
	case "concise":
		return "concise"
	case "detailed":
		return "detailed"
	default:
		return "appropriately sized"
	}
}
