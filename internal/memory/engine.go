// Package memory implements the conversational memory engine: a bounded
// in-process cache of per-(user, session) contexts backed by a persistent
// document store, with salience-aware history pruning, lightweight behavior
// learning and bounded prompt assembly.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/recall/internal/observability"
	"github.com/ent0n29/recall/internal/persist"
	"github.com/ent0n29/recall/internal/policy"
)

var (
	ErrMissingUserID    = errors.New("user id is required")
	ErrMissingSessionID = errors.New("session id is required")
	ErrNoAssistantTurn  = errors.New("no assistant turn to rate")
	ErrInvalidRating    = errors.New("satisfaction rating must be between 1 and 5")
)

const (
	historyMax       = 50
	pruneRecentKeep  = 20
	pruneSalientKeep = 10

	relatedTopicsMax    = 10
	topicProgressionMax = 10
	recentQueriesMax    = 10
	frequentTopicsMax   = 50

	engagementHighLen   = 100
	engagementMediumLen = 50
	verbosityDetailLen  = 200
	verbosityConciseLen = 50

	newTopicUserExpertise = 0.1
)

var formalMarkers = []string{
	"please", "could you", "would you", "thank you", "kindly", "appreciate",
}

var casualMarkers = []string{
	"hey", "yo", "gonna", "wanna", "lol", "btw", "yeah",
}

var farewellMarkers = []string{
	"goodbye", "bye", "see you", "that's all", "talk later",
}

// Engine is the public surface of the memory subsystem. All mutating
// operations on one (user, session) pair serialize on a per-key mutex, so
// two overlapping AddMessage calls can never lose each other's updates.
type Engine struct {
	adapter   persist.Adapter
	extractor SignalExtractor
	cache     *contextCache
	bus       *eventBus
	metrics   *observability.Metrics

	locksMu  sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewEngine wires the engine over a persistence adapter. cacheCapacity <= 0
// selects the default of 100 contexts. metrics may be nil.
func NewEngine(adapter persist.Adapter, cacheCapacity int, metrics *observability.Metrics) *Engine {
	return &Engine{
		adapter:   adapter,
		extractor: NewHeuristicExtractor(),
		cache:     newContextCache(cacheCapacity),
		bus:       newEventBus(),
		metrics:   metrics,
		keyLocks:  make(map[string]*sync.Mutex),
	}
}

// SetExtractor swaps the signal strategy. Call before serving traffic.
func (e *Engine) SetExtractor(x SignalExtractor) {
	if x != nil {
		e.extractor = x
	}
}

// Subscribe delivers an IngestEvent for every message added to the session.
// The returned func cancels the subscription.
func (e *Engine) Subscribe(sessionID string) (<-chan IngestEvent, func()) {
	return e.bus.subscribe(sessionID)
}

// GetOrCreate returns a deep copy of the working context for the pair,
// hydrating from the store or creating a fresh one on first access. A
// missing persisted document is an ordinary "needs creation" state, never an
// error; a failing backend propagates.
func (e *Engine) GetOrCreate(ctx context.Context, userID, sessionID string) (*MemoryContext, error) {
	if err := validateKey(userID, sessionID); err != nil {
		return nil, err
	}

	lock := e.keyLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	mc, err := e.loadLocked(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return mc.Clone(), nil
}

// AddMessage runs the full ingestion pipeline for one turn: signal
// extraction, append, pruning, contextual update, learning and write-back.
func (e *Engine) AddMessage(ctx context.Context, userID, sessionID string, msg ConversationMessage) error {
	if err := validateKey(userID, sessionID); err != nil {
		return err
	}
	start := time.Now()

	lock := e.keyLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	mc, err := e.loadLocked(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	// 1. Signal extraction.
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if !mc.Preferences.AllowPersonalInfo {
		msg.Content, _ = policy.RedactPII(msg.Content)
	}
	msg.Topics = e.extractor.Topics(msg.Content)
	msg.Sentiment = e.extractor.Sentiment(msg.Content)
	msg.Importance = e.extractor.Importance(msg, mc.Profile)

	// 2. Append in chronological order.
	mc.History = append(mc.History, msg)

	// 3. Prune when the window overflows.
	pruned := false
	if len(mc.History) > historyMax {
		mc.History = pruneHistory(mc.History)
		pruned = true
		if e.metrics != nil {
			e.metrics.PruneEvents.Inc()
		}
	}

	// 4. Session-scoped contextual state.
	updateContextual(mc, msg)

	// 5. Behavioral learning.
	e.learn(mc, msg)

	mc.UpdatedAt = time.Now().UTC()

	// 6. Write-back: profile and long-term memory first, context snapshot
	// last, so a partial failure leaves the cross-session documents
	// consistent.
	persistStart := time.Now()
	if err := e.persistLocked(ctx, mc); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.ObserveStage("persist", time.Since(persistStart))
		e.metrics.ObserveStage("ingest_total", time.Since(start))
		e.metrics.IngestLatency.Observe(float64(time.Since(start).Milliseconds()))
	}
	e.bus.publish(IngestEvent{
		UserID:     userID,
		SessionID:  sessionID,
		MessageID:  msg.ID,
		Role:       msg.Role,
		Topics:     msg.Topics,
		Sentiment:  msg.Sentiment,
		Importance: msg.Importance,
		Pruned:     pruned,
		HistoryLen: len(mc.History),
		At:         msg.Timestamp,
	})
	return nil
}

// RecordFeedback applies a late satisfaction rating to the most recent
// assistant turn and, when feedback learning is enabled, synthesizes a
// learned behavior from it.
func (e *Engine) RecordFeedback(ctx context.Context, userID, sessionID string, rating int, comment string) error {
	if err := validateKey(userID, sessionID); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	lock := e.keyLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	mc, err := e.loadLocked(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	idx := lastAssistantIndex(mc.History, len(mc.History))
	if idx < 0 {
		return ErrNoAssistantTurn
	}
	mc.History[idx].Metadata.UserSatisfaction = rating
	if comment != "" {
		mc.History[idx].Metadata.UserFeedback = comment
	}
	if mc.Preferences.FeedbackLearning {
		mc.Behaviors = append(mc.Behaviors, behaviorFromRating(mc.History[idx], rating))
	}
	mc.UpdatedAt = time.Now().UTC()

	return e.persistLocked(ctx, mc)
}

// ContextualPrompt assembles the bounded instruction string for the
// downstream model. Read-only apart from hydration.
func (e *Engine) ContextualPrompt(ctx context.Context, userID, sessionID, userMessage string) (string, error) {
	if err := validateKey(userID, sessionID); err != nil {
		return "", err
	}

	lock := e.keyLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	mc, err := e.loadLocked(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	promptStart := time.Now()
	prompt := assemblePrompt(mc, userMessage)
	if e.metrics != nil {
		e.metrics.ObserveStage("prompt", time.Since(promptStart))
		e.metrics.PromptChars.Observe(float64(len(prompt)))
	}
	return prompt, nil
}

// ConversationSummary is the read-only digest for history UIs.
func (e *Engine) ConversationSummary(ctx context.Context, userID, sessionID string) (Summary, error) {
	if err := validateKey(userID, sessionID); err != nil {
		return Summary{}, err
	}

	lock := e.keyLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	mc, err := e.loadLocked(ctx, userID, sessionID)
	if err != nil {
		return Summary{}, err
	}

	started := mc.CreatedAt
	if len(mc.History) > 0 {
		started = mc.History[0].Timestamp
	}
	return Summary{
		UserID:         mc.UserID,
		SessionID:      mc.SessionID,
		ConversationID: mc.ConversationID,
		MessageCount:   len(mc.History),
		CurrentTopic:   mc.Contextual.CurrentTopic,
		RelatedTopics:  append([]string(nil), mc.Contextual.RelatedTopics...),
		Stage:          mc.Contextual.Flow.Stage,
		UserEngagement: mc.Contextual.Flow.UserEngagement,
		StartedAt:      started,
		LastActivityAt: mc.UpdatedAt,
	}, nil
}

// Preferences reads the per-user toggles, defaulting when none are stored.
func (e *Engine) Preferences(ctx context.Context, userID string) (UserMemoryPreferences, error) {
	if strings.TrimSpace(userID) == "" {
		return UserMemoryPreferences{}, ErrMissingUserID
	}
	return e.loadPreferences(ctx, userID)
}

// UpdatePreferences persists the toggles and refreshes them on any cached
// context belonging to the user on its next hydration.
func (e *Engine) UpdatePreferences(ctx context.Context, userID string, prefs UserMemoryPreferences) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	if prefs.MemoryRetentionDays <= 0 {
		prefs.MemoryRetentionDays = DefaultPreferences().MemoryRetentionDays
	}
	doc, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := e.adapter.Put(ctx, persist.PreferencesKey(userID), doc); err != nil {
		e.countPersistFailure("preferences")
		return err
	}
	return nil
}

// CachedContexts reports the number of hydrated contexts currently held.
func (e *Engine) CachedContexts() int {
	return e.cache.len()
}

func (e *Engine) keyLock(userID, sessionID string) *sync.Mutex {
	key := persist.ContextKey(userID, sessionID)
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	if l, ok := e.keyLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.keyLocks[key] = l
	return l
}

// loadLocked returns the live cached context, hydrating on miss. Caller must
// hold the per-key lock.
func (e *Engine) loadLocked(ctx context.Context, userID, sessionID string) (*MemoryContext, error) {
	key := persist.ContextKey(userID, sessionID)
	if mc, ok := e.cache.get(key); ok {
		e.countCache("hit")
		return mc, nil
	}
	e.countCache("miss")

	hydrateStart := time.Now()
	mc, err := e.hydrate(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ObserveStage("hydrate", time.Since(hydrateStart))
	}
	if _, evicted := e.cache.put(key, mc); evicted {
		e.countCache("eviction")
	}
	if e.metrics != nil {
		e.metrics.ContextsCached.Set(float64(e.cache.len()))
	}
	return mc, nil
}

func (e *Engine) hydrate(ctx context.Context, userID, sessionID string) (*MemoryContext, error) {
	prefs, err := e.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	doc, found, err := e.adapter.Get(ctx, persist.ContextKey(userID, sessionID))
	if err != nil {
		return nil, err
	}
	if found {
		var mc MemoryContext
		if err := json.Unmarshal(doc, &mc); err != nil {
			return nil, fmt.Errorf("decode context %s/%s: %w", userID, sessionID, err)
		}
		mc.Preferences = prefs
		mc.History = applyRetention(mc.History, prefs.MemoryRetentionDays)
		if mc.LongTerm.LearningProgress == nil {
			mc.LongTerm.LearningProgress = make(map[string]float64)
		}
		return &mc, nil
	}

	profile := DefaultProfile()
	longTerm := LongTermMemory{LearningProgress: make(map[string]float64)}
	if prefs.CrossSessionMemory {
		if err := e.loadUserDoc(ctx, persist.ProfileKey(userID), &profile); err != nil {
			return nil, err
		}
		if err := e.loadUserDoc(ctx, persist.LongTermKey(userID), &longTerm); err != nil {
			return nil, err
		}
		if longTerm.LearningProgress == nil {
			longTerm.LearningProgress = make(map[string]float64)
		}
	}

	now := time.Now().UTC()
	return &MemoryContext{
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: uuid.NewString(),
		Profile:        profile,
		Preferences:    prefs,
		Contextual: ContextualMemory{
			Flow: ConversationFlow{Stage: StageGreeting, UserEngagement: EngagementLow},
		},
		LongTerm:  longTerm,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (e *Engine) loadPreferences(ctx context.Context, userID string) (UserMemoryPreferences, error) {
	prefs := DefaultPreferences()
	if err := e.loadUserDoc(ctx, persist.PreferencesKey(userID), &prefs); err != nil {
		return UserMemoryPreferences{}, err
	}
	if prefs.MemoryRetentionDays <= 0 {
		prefs.MemoryRetentionDays = DefaultPreferences().MemoryRetentionDays
	}
	return prefs, nil
}

// loadUserDoc overwrites dest with the stored document when one exists;
// absence leaves the passed-in default untouched.
func (e *Engine) loadUserDoc(ctx context.Context, key string, dest any) error {
	doc, found, err := e.adapter.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := json.Unmarshal(doc, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (e *Engine) persistLocked(ctx context.Context, mc *MemoryContext) error {
	if mc.Preferences.CrossSessionMemory {
		profileDoc, err := json.Marshal(mc.Profile)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		if err := e.adapter.Put(ctx, persist.ProfileKey(mc.UserID), profileDoc); err != nil {
			e.countPersistFailure("profile")
			return err
		}

		longTermDoc, err := json.Marshal(mc.LongTerm)
		if err != nil {
			return fmt.Errorf("marshal long-term memory: %w", err)
		}
		if err := e.adapter.Put(ctx, persist.LongTermKey(mc.UserID), longTermDoc); err != nil {
			e.countPersistFailure("longterm")
			return err
		}
	}

	contextDoc, err := json.Marshal(mc)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if err := e.adapter.Put(ctx, persist.ContextKey(mc.UserID, mc.SessionID), contextDoc); err != nil {
		e.countPersistFailure("context")
		return err
	}
	return nil
}

func (e *Engine) learn(mc *MemoryContext, msg ConversationMessage) {
	if mc.Preferences.StyleAdaptation && msg.Role == RoleUser {
		lower := strings.ToLower(msg.Content)
		formal := containsAny(lower, formalMarkers)
		casual := containsAny(lower, casualMarkers)
		switch {
		case formal && !casual:
			mc.Profile.Style.Formality = "formal"
		case casual && !formal:
			mc.Profile.Style.Formality = "casual"
		}

		if len(msg.Content) > verbosityDetailLen {
			mc.Profile.Style.Verbosity = "detailed"
		} else if len(msg.Content) < verbosityConciseLen {
			mc.Profile.Style.Verbosity = "concise"
		}
	}

	if mc.Preferences.FeedbackLearning && msg.Metadata.UserSatisfaction >= 1 && msg.Metadata.UserSatisfaction <= 5 {
		// The rating arrives on the message following the assistant turn it
		// judges; exclude the just-appended message from the search.
		if idx := lastAssistantIndex(mc.History, len(mc.History)-1); idx >= 0 {
			rating := msg.Metadata.UserSatisfaction
			mc.History[idx].Metadata.UserSatisfaction = rating
			mc.Behaviors = append(mc.Behaviors, behaviorFromRating(mc.History[idx], rating))
		}
	}

	if mc.Preferences.CrossSessionMemory {
		updateFrequentTopics(&mc.LongTerm, msg)
	}
}

func behaviorFromRating(assistant ConversationMessage, rating int) LearnedBehavior {
	eff := float64(rating) / 5
	return LearnedBehavior{
		Category:      "preference",
		Description:   "Response style similar to: " + snippet(assistant.Content, 50),
		Confidence:    eff,
		UsageCount:    1,
		LastUsed:      time.Now().UTC(),
		Effectiveness: eff,
	}
}

func updateFrequentTopics(lt *LongTermMemory, msg ConversationMessage) {
	for _, topic := range msg.Topics {
		found := false
		for i := range lt.FrequentTopics {
			if lt.FrequentTopics[i].Topic == topic {
				lt.FrequentTopics[i].Count++
				lt.FrequentTopics[i].LastDiscussed = msg.Timestamp
				found = true
				break
			}
		}
		if found {
			continue
		}
		expertise := 0.0
		if msg.Role == RoleUser {
			expertise = newTopicUserExpertise
		}
		lt.FrequentTopics = append(lt.FrequentTopics, TopicStat{
			Topic:         topic,
			Count:         1,
			LastDiscussed: msg.Timestamp,
			UserExpertise: expertise,
		})
	}

	if len(lt.FrequentTopics) > frequentTopicsMax {
		sort.SliceStable(lt.FrequentTopics, func(i, j int) bool {
			return lt.FrequentTopics[i].Count > lt.FrequentTopics[j].Count
		})
		lt.FrequentTopics = lt.FrequentTopics[:frequentTopicsMax]
	}
}

func updateContextual(mc *MemoryContext, msg ConversationMessage) {
	cm := &mc.Contextual

	if len(msg.Topics) > 0 {
		primary := msg.Topics[0]
		if primary != cm.CurrentTopic {
			cm.Flow.TopicProgression = appendCapped(cm.Flow.TopicProgression, primary, topicProgressionMax)
		}
		cm.CurrentTopic = primary
		for _, t := range msg.Topics[1:] {
			cm.RelatedTopics = appendUniqueCapped(cm.RelatedTopics, t, relatedTopicsMax)
		}
	}

	if msg.Role == RoleUser {
		cm.RecentQueries = appendCapped(cm.RecentQueries, msg.Content, recentQueriesMax)
		if strings.Contains(msg.Content, "?") {
			cm.Flow.QuestionAsked = true
		}
	}

	switch {
	case len(msg.Content) > engagementHighLen && msg.Sentiment == SentimentPositive:
		cm.Flow.UserEngagement = EngagementHigh
	case len(msg.Content) > engagementMediumLen && msg.Sentiment != SentimentNegative:
		cm.Flow.UserEngagement = EngagementMedium
	default:
		cm.Flow.UserEngagement = EngagementLow
	}

	cm.Flow.Stage = nextStage(mc, msg)
}

func nextStage(mc *MemoryContext, msg ConversationMessage) FlowStage {
	lower := strings.ToLower(msg.Content)
	switch {
	case containsAny(lower, farewellMarkers):
		return StageConclusion
	case len(mc.History) <= 2:
		return StageGreeting
	case mc.Contextual.Flow.QuestionAsked && msg.Sentiment == SentimentNegative:
		return StageProblemSolving
	case len(mc.Contextual.Flow.TopicProgression) >= 3 && mc.Contextual.Flow.UserEngagement == EngagementHigh:
		return StageDeepDive
	default:
		return StageExploration
	}
}

// pruneHistory keeps the 20 most recent turns plus the 10 highest-importance
// turns from the remainder, re-sorted chronologically.
func pruneHistory(h []ConversationMessage) []ConversationMessage {
	if len(h) <= historyMax {
		return h
	}

	recent := h[len(h)-pruneRecentKeep:]
	older := append([]ConversationMessage(nil), h[:len(h)-pruneRecentKeep]...)
	sort.SliceStable(older, func(i, j int) bool {
		return older[i].Importance > older[j].Importance
	})

	keep := pruneSalientKeep
	if keep > len(older) {
		keep = len(older)
	}

	merged := make([]ConversationMessage, 0, keep+len(recent))
	merged = append(merged, older[:keep]...)
	merged = append(merged, recent...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

func applyRetention(h []ConversationMessage, retentionDays int) []ConversationMessage {
	if retentionDays <= 0 || len(h) == 0 {
		return h
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	for i, msg := range h {
		if msg.Timestamp.After(cutoff) {
			return h[i:]
		}
	}
	return nil
}

func lastAssistantIndex(h []ConversationMessage, before int) int {
	if before > len(h) {
		before = len(h)
	}
	for i := before - 1; i >= 0; i-- {
		if h[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

func appendCapped(items []string, v string, capacity int) []string {
	items = append(items, v)
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}
	return items
}

func appendUniqueCapped(items []string, v string, capacity int) []string {
	for _, existing := range items {
		if existing == v {
			return items
		}
	}
	return appendCapped(items, v, capacity)
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func validateKey(userID, sessionID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	if strings.TrimSpace(sessionID) == "" {
		return ErrMissingSessionID
	}
	return nil
}

func (e *Engine) countCache(event string) {
	if e.metrics != nil {
		e.metrics.CacheEvents.WithLabelValues(event).Inc()
	}
}

func (e *Engine) countPersistFailure(doc string) {
	if e.metrics != nil {
		e.metrics.PersistFailures.WithLabelValues(doc).Inc()
	}
}
