package memory

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type FlowStage string

const (
	StageGreeting       FlowStage = "greeting"
	StageExploration    FlowStage = "exploration"
	StageDeepDive       FlowStage = "deep_dive"
	StageProblemSolving FlowStage = "problem_solving"
	StageConclusion     FlowStage = "conclusion"
)

type Engagement string

const (
	EngagementHigh   Engagement = "high"
	EngagementMedium Engagement = "medium"
	EngagementLow    Engagement = "low"
)

// MessageMetadata carries per-turn bookkeeping. UserSatisfaction is the one
// field allowed to arrive after the message was appended (1-5, 0 means unset).
type MessageMetadata struct {
	TokenCount       int      `json:"token_count,omitempty"`
	ResponseTimeMS   int64    `json:"response_time_ms,omitempty"`
	UserSatisfaction int      `json:"user_satisfaction,omitempty"`
	UserFeedback     string   `json:"user_feedback,omitempty"`
	ContextUsed      []string `json:"context_used,omitempty"`
	SearchResults    []string `json:"search_results,omitempty"`
}

// ConversationMessage is a single turn with its derived signals. Immutable
// once appended, except for late satisfaction feedback.
type ConversationMessage struct {
	ID         string          `json:"id"`
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Timestamp  time.Time       `json:"timestamp"`
	Model      string          `json:"model,omitempty"`
	Metadata   MessageMetadata `json:"metadata"`
	Importance int             `json:"importance"`
	Topics     []string        `json:"topics,omitempty"`
	Sentiment  Sentiment       `json:"sentiment"`
}

type CommunicationStyle struct {
	Formality      string `json:"formality"`       // casual | formal | mixed
	Verbosity      string `json:"verbosity"`       // concise | detailed | adaptive
	TechnicalLevel string `json:"technical_level"` // beginner | intermediate | advanced
	ResponseLength string `json:"response_length"` // short | medium | long
	Humor          bool   `json:"humor"`
	Examples       bool   `json:"examples"`
}

// UserProfile persists across sessions.
type UserProfile struct {
	Name            string             `json:"name,omitempty"`
	Interests       []string           `json:"interests,omitempty"`
	Style           CommunicationStyle `json:"communication_style"`
	ExpertiseAreas  []string           `json:"expertise_areas,omitempty"`
	LearningGoals   []string           `json:"learning_goals,omitempty"`
	PreferredTopics []string           `json:"preferred_topics,omitempty"`
	AvoidedTopics   []string           `json:"avoided_topics,omitempty"`
}

type ConversationFlow struct {
	Stage              FlowStage  `json:"stage"`
	TopicProgression   []string   `json:"topic_progression,omitempty"`
	QuestionAsked      bool       `json:"question_asked"`
	NeedsClarification bool       `json:"needs_clarification"`
	UserEngagement     Engagement `json:"user_engagement"`
}

// ContextualMemory is ephemeral, session-scoped state.
type ContextualMemory struct {
	CurrentTopic      string           `json:"current_topic,omitempty"`
	RelatedTopics     []string         `json:"related_topics,omitempty"`
	RecentQueries     []string         `json:"recent_queries,omitempty"`
	ActiveProjects    []string         `json:"active_projects,omitempty"`
	FollowUpReminders []string         `json:"follow_up_reminders,omitempty"`
	Flow              ConversationFlow `json:"conversation_flow"`
}

type TopicStat struct {
	Topic         string    `json:"topic"`
	Count         int       `json:"count"`
	LastDiscussed time.Time `json:"last_discussed"`
	UserExpertise float64   `json:"user_expertise"`
	AIHelpfulness float64   `json:"ai_helpfulness"`
}

type PersonalFact struct {
	Fact        string    `json:"fact"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"` // stated | inferred | observed
	LastUpdated time.Time `json:"last_updated"`
}

// LongTermMemory aggregates across sessions for one user.
type LongTermMemory struct {
	FrequentTopics   []TopicStat        `json:"frequent_topics,omitempty"`
	UserJourney      []string           `json:"user_journey,omitempty"`
	Achievements     []string           `json:"achievements,omitempty"`
	LearningProgress map[string]float64 `json:"learning_progress,omitempty"`
	PersonalFacts    []PersonalFact     `json:"personal_facts,omitempty"`
}

// LearnedBehavior records an adaptation derived from explicit user feedback.
type LearnedBehavior struct {
	Category      string    `json:"category"` // preference | pattern | style | topic
	Description   string    `json:"description"`
	Confidence    float64   `json:"confidence"`
	UsageCount    int       `json:"usage_count"`
	LastUsed      time.Time `json:"last_used"`
	Effectiveness float64   `json:"effectiveness"`
}

type UserMemoryPreferences struct {
	AllowPersonalInfo   bool `json:"allow_personal_info"`
	CrossSessionMemory  bool `json:"cross_session_memory"`
	StyleAdaptation     bool `json:"style_adaptation"`
	FeedbackLearning    bool `json:"feedback_learning"`
	MemoryRetentionDays int  `json:"memory_retention_days"`
}

// MemoryContext is the full working-memory record for one (user, session)
// pair. The cached copy is owned by the engine; the durable copy lives behind
// the persistence adapter.
type MemoryContext struct {
	UserID         string                `json:"user_id"`
	SessionID      string                `json:"session_id"`
	ConversationID string                `json:"conversation_id"`
	Profile        UserProfile           `json:"profile"`
	History        []ConversationMessage `json:"history"`
	Preferences    UserMemoryPreferences `json:"preferences"`
	Behaviors      []LearnedBehavior     `json:"learned_behaviors,omitempty"`
	Contextual     ContextualMemory      `json:"contextual_memory"`
	LongTerm       LongTermMemory        `json:"long_term_memory"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Summary is the read-only conversation digest served to history UIs.
type Summary struct {
	UserID         string     `json:"user_id"`
	SessionID      string     `json:"session_id"`
	ConversationID string     `json:"conversation_id"`
	MessageCount   int        `json:"message_count"`
	CurrentTopic   string     `json:"current_topic,omitempty"`
	RelatedTopics  []string   `json:"related_topics,omitempty"`
	Stage          FlowStage  `json:"stage"`
	UserEngagement Engagement `json:"user_engagement"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

func DefaultProfile() UserProfile {
	return UserProfile{
		Style: CommunicationStyle{
			Formality:      "mixed",
			Verbosity:      "adaptive",
			TechnicalLevel: "intermediate",
			ResponseLength: "medium",
			Humor:          false,
			Examples:       true,
		},
	}
}

func DefaultPreferences() UserMemoryPreferences {
	return UserMemoryPreferences{
		AllowPersonalInfo:   true,
		CrossSessionMemory:  true,
		StyleAdaptation:     true,
		FeedbackLearning:    true,
		MemoryRetentionDays: 90,
	}
}

// Clone returns a deep copy so callers never share slices with the cached
// context.
func (c *MemoryContext) Clone() *MemoryContext {
	if c == nil {
		return nil
	}
	out := *c
	out.History = cloneMessages(c.History)
	out.Behaviors = append([]LearnedBehavior(nil), c.Behaviors...)
	out.Profile = c.Profile.clone()
	out.Contextual = c.Contextual.clone()
	out.LongTerm = c.LongTerm.clone()
	return &out
}

func cloneMessages(in []ConversationMessage) []ConversationMessage {
	if in == nil {
		return nil
	}
	out := make([]ConversationMessage, len(in))
	copy(out, in)
	for i := range out {
		out[i].Topics = append([]string(nil), in[i].Topics...)
		out[i].Metadata.ContextUsed = append([]string(nil), in[i].Metadata.ContextUsed...)
		out[i].Metadata.SearchResults = append([]string(nil), in[i].Metadata.SearchResults...)
	}
	return out
}

func (p UserProfile) clone() UserProfile {
	out := p
	out.Interests = append([]string(nil), p.Interests...)
	out.ExpertiseAreas = append([]string(nil), p.ExpertiseAreas...)
	out.LearningGoals = append([]string(nil), p.LearningGoals...)
	out.PreferredTopics = append([]string(nil), p.PreferredTopics...)
	out.AvoidedTopics = append([]string(nil), p.AvoidedTopics...)
	return out
}

func (m ContextualMemory) clone() ContextualMemory {
	out := m
	out.RelatedTopics = append([]string(nil), m.RelatedTopics...)
	out.RecentQueries = append([]string(nil), m.RecentQueries...)
	out.ActiveProjects = append([]string(nil), m.ActiveProjects...)
	out.FollowUpReminders = append([]string(nil), m.FollowUpReminders...)
	out.Flow.TopicProgression = append([]string(nil), m.Flow.TopicProgression...)
	return out
}

func (l LongTermMemory) clone() LongTermMemory {
	out := l
	out.FrequentTopics = append([]TopicStat(nil), l.FrequentTopics...)
	out.UserJourney = append([]string(nil), l.UserJourney...)
	out.Achievements = append([]string(nil), l.Achievements...)
	out.PersonalFacts = append([]PersonalFact(nil), l.PersonalFacts...)
	if l.LearningProgress != nil {
		out.LearningProgress = make(map[string]float64, len(l.LearningProgress))
		for k, v := range l.LearningProgress {
			out.LearningProgress[k] = v
		}
	}
	return out
}
