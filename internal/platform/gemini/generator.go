// Package gemini provides an implementation of the generation.ContentGenerator
// interface using Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/studyhall/studyhall-api/internal/config"
	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
)

const (
	defaultFlashcardCount = 10
	defaultMCQCount       = 10

	// degradedSummaryLimit caps the raw text kept as a notes summary when
	// the provider response cannot be parsed as a structured record.
	degradedSummaryLimit = 500
)

// GeminiGenerator implements the generation.ContentGenerator interface
// using Google's Gemini API. A single client built from the shared system
// credential is reused across calls; personal-credential calls build a
// throwaway client so keys never leak between users.
type GeminiGenerator struct {
	cfg    config.LLMConfig
	shared *genai.Client
	logger *slog.Logger
}

var _ generation.ContentGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a GeminiGenerator from the LLM configuration.
// It validates the config and initializes the shared-credential client.
func NewGeminiGenerator(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: missing Gemini API key", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: missing model name", generation.ErrInvalidConfig)
	}

	if log == nil {
		log = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %v", generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		cfg:    cfg,
		shared: client,
		logger: log.With(slog.String("component", "gemini_generator")),
	}, nil
}

// notesRecord mirrors the JSON shape the notes prompt asks for.
type notesRecord struct {
	Summary            string   `json:"summary"`
	DetailedContent    string   `json:"detailed_content"`
	Analogies          []string `json:"analogies"`
	DiagramDescription string   `json:"diagram_description"`
}

// mindmapRecord mirrors the JSON shape the mindmap prompt asks for.
type mindmapRecord struct {
	CentralIdea string `json:"central_idea"`
	Branches    []struct {
		Title     string   `json:"title"`
		Subpoints []string `json:"subpoints"`
	} `json:"branches"`
}

// flashcardRecord mirrors one element of the flashcards prompt's array.
type flashcardRecord struct {
	Front      string `json:"front"`
	Back       string `json:"back"`
	Difficulty string `json:"difficulty"`
}

// mcqRecord mirrors one element of the MCQs prompt's array.
type mcqRecord struct {
	Question    string            `json:"question"`
	Options     map[string]string `json:"options"`
	Correct     string            `json:"correct"`
	Explanation string            `json:"explanation"`
	Difficulty  string            `json:"difficulty"`
}

// GenerateNotes implements generation.ContentGenerator.GenerateNotes.
// When the response carries no parseable record, a degraded notes
// artifact is built from the raw text instead of failing the call.
func (g *GeminiGenerator) GenerateNotes(ctx context.Context, topic *domain.Topic, cred generation.Credential) (*domain.Notes, generation.TokenUsage, error) {
	if topic == nil || topic.Name == "" {
		return nil, generation.TokenUsage{}, generation.ErrEmptyTopicName
	}

	text, usage, err := g.generate(ctx, notesPrompt(topic.Name, topic.SubjectName), cred)
	if err != nil {
		return nil, usage, err
	}

	var record notesRecord
	if err := generation.ExtractObject(text, &record); err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Warn("notes response not parseable, storing degraded record",
			slog.String("topic_id", topic.ID.String()))
		record = notesRecord{
			Summary:         generation.TruncateSummary(text, degradedSummaryLimit),
			DetailedContent: text,
			Analogies:       []string{},
		}
	}

	notes, err := domain.NewNotes(topic.ID, record.Summary, record.DetailedContent, record.Analogies, record.DiagramDescription)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	return notes, usage, nil
}

// GenerateMindmap implements generation.ContentGenerator.GenerateMindmap.
// An unparseable response degrades to the topic name as the central idea
// with a single placeholder branch.
func (g *GeminiGenerator) GenerateMindmap(ctx context.Context, topic *domain.Topic, cred generation.Credential) (*domain.Mindmap, generation.TokenUsage, error) {
	if topic == nil || topic.Name == "" {
		return nil, generation.TokenUsage{}, generation.ErrEmptyTopicName
	}

	text, usage, err := g.generate(ctx, mindmapPrompt(topic.Name, topic.SubjectName), cred)
	if err != nil {
		return nil, usage, err
	}

	var record mindmapRecord
	branches := []domain.MindmapBranch{}
	centralIdea := topic.Name
	if err := generation.ExtractObject(text, &record); err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Warn("mindmap response not parseable, storing degraded record",
			slog.String("topic_id", topic.ID.String()))
		branches = append(branches, domain.MindmapBranch{Title: "Could not parse response", Subpoints: []string{}})
	} else {
		if record.CentralIdea != "" {
			centralIdea = record.CentralIdea
		}
		for _, b := range record.Branches {
			subpoints := b.Subpoints
			if subpoints == nil {
				subpoints = []string{}
			}
			branches = append(branches, domain.MindmapBranch{Title: b.Title, Subpoints: subpoints})
		}
	}

	mindmap, err := domain.NewMindmap(topic.ID, centralIdea, branches)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	return mindmap, usage, nil
}

// GenerateFlashcards implements generation.ContentGenerator.GenerateFlashcards.
// An unparseable response degrades to an empty set.
func (g *GeminiGenerator) GenerateFlashcards(ctx context.Context, topic *domain.Topic, notesContext string, cred generation.Credential) ([]*domain.Flashcard, generation.TokenUsage, error) {
	if topic == nil || topic.Name == "" {
		return nil, generation.TokenUsage{}, generation.ErrEmptyTopicName
	}

	text, usage, err := g.generate(ctx, flashcardsPrompt(topic.Name, notesContext, defaultFlashcardCount), cred)
	if err != nil {
		return nil, usage, err
	}

	var records []flashcardRecord
	if err := generation.ExtractArray(text, &records); err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Warn("flashcards response not parseable, storing empty set",
			slog.String("topic_id", topic.ID.String()))
		return []*domain.Flashcard{}, usage, nil
	}

	cards := make([]*domain.Flashcard, 0, len(records))
	for _, r := range records {
		card, err := domain.NewFlashcard(topic.ID, r.Front, r.Back, r.Difficulty)
		if err != nil {
			// Skip malformed elements rather than discarding the whole set.
			continue
		}
		cards = append(cards, card)
	}

	return cards, usage, nil
}

// GenerateMCQs implements generation.ContentGenerator.GenerateMCQs.
// An unparseable response degrades to an empty set.
func (g *GeminiGenerator) GenerateMCQs(ctx context.Context, topic *domain.Topic, notesContext string, cred generation.Credential) ([]*domain.MCQ, generation.TokenUsage, error) {
	if topic == nil || topic.Name == "" {
		return nil, generation.TokenUsage{}, generation.ErrEmptyTopicName
	}

	text, usage, err := g.generate(ctx, mcqsPrompt(topic.Name, notesContext, defaultMCQCount), cred)
	if err != nil {
		return nil, usage, err
	}

	var records []mcqRecord
	if err := generation.ExtractArray(text, &records); err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Warn("mcqs response not parseable, storing empty set",
			slog.String("topic_id", topic.ID.String()))
		return []*domain.MCQ{}, usage, nil
	}

	mcqs := make([]*domain.MCQ, 0, len(records))
	for _, r := range records {
		mcq, err := domain.NewMCQ(
			topic.ID,
			r.Question,
			r.Options["a"],
			r.Options["b"],
			r.Options["c"],
			r.Options["d"],
			strings.ToLower(strings.TrimSpace(r.Correct)),
			r.Explanation,
			r.Difficulty,
		)
		if err != nil {
			continue
		}
		mcqs = append(mcqs, mcq)
	}

	return mcqs, usage, nil
}

// TagQuestionTopic implements generation.ContentGenerator.TagQuestionTopic.
// The provider's reply must match one of the candidates; anything else
// degrades to an empty tag.
func (g *GeminiGenerator) TagQuestionTopic(ctx context.Context, questionText string, candidates []string, cred generation.Credential) (string, generation.TokenUsage, error) {
	if len(candidates) == 0 {
		return "", generation.TokenUsage{}, nil
	}

	text, usage, err := g.generate(ctx, tagTopicPrompt(questionText, candidates), cred)
	if err != nil {
		return "", usage, err
	}

	reply := strings.TrimSpace(text)
	for _, candidate := range candidates {
		if strings.EqualFold(reply, candidate) {
			return candidate, usage, nil
		}
	}

	logger.FromContextOrDefault(ctx, g.logger).Warn("tag reply matched no candidate topic",
		slog.Int("candidates", len(candidates)))
	return "", usage, nil
}

// AnswerDoubt implements generation.ContentGenerator.AnswerDoubt
func (g *GeminiGenerator) AnswerDoubt(ctx context.Context, question, topicName, notesContext string, cred generation.Credential) (string, generation.TokenUsage, error) {
	text, usage, err := g.generate(ctx, answerDoubtPrompt(question, topicName, notesContext), cred)
	if err != nil {
		return "", usage, err
	}

	return strings.TrimSpace(text), usage, nil
}

// generate runs one provider call under the configured timeout and
// returns the response text plus its metering record.
func (g *GeminiGenerator) generate(ctx context.Context, prompt string, cred generation.Credential) (string, generation.TokenUsage, error) {
	client, err := g.clientFor(ctx, cred)
	if err != nil {
		return "", generation.TokenUsage{}, err
	}

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.ModelName, genai.Text(prompt), nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", generation.TokenUsage{}, fmt.Errorf("%w: request timed out after %s", generation.ErrGenerationFailed, g.cfg.RequestTimeout)
		}
		return "", generation.TokenUsage{}, classifyProviderError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", usageFrom(resp), fmt.Errorf("%w: empty response from model", generation.ErrGenerationFailed)
	}

	return text, usageFrom(resp), nil
}

// clientFor returns the shared client for system-credential calls and a
// fresh client bound to the user's key for personal-credential calls.
func (g *GeminiGenerator) clientFor(ctx context.Context, cred generation.Credential) (*genai.Client, error) {
	if !cred.Personal || cred.Key == "" || cred.Key == g.cfg.GeminiAPIKey {
		return g.shared, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cred.Key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client for personal credential: %v", generation.ErrGenerationFailed, err)
	}

	return client, nil
}

func usageFrom(resp *genai.GenerateContentResponse) generation.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return generation.TokenUsage{}
	}

	return generation.TokenUsage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	}
}
