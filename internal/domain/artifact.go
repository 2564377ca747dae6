package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind identifies a category of generated study material.
type ArtifactKind string

// Possible artifact kinds. KindAll is not an artifact shape of its own;
// it names the bulk request that produces all four kinds at once.
const (
	KindAll        ArtifactKind = "all"
	KindNotes      ArtifactKind = "notes"
	KindMindmap    ArtifactKind = "mindmap"
	KindFlashcards ArtifactKind = "flashcards"
	KindMCQs       ArtifactKind = "mcqs"
)

// Difficulty tags used by flashcards and MCQs.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Common validation errors for artifacts
var (
	ErrEmptyArtifactTopicID = errors.New("artifact topic ID cannot be empty")
	ErrEmptyFlashcardFront  = errors.New("flashcard front text cannot be empty")
	ErrEmptyMCQQuestion     = errors.New("mcq question text cannot be empty")
	ErrInvalidMCQCorrect    = errors.New("mcq correct option must be a, b, c or d")
)

// ParseArtifactKind validates a raw string as an ArtifactKind.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	kind := ArtifactKind(s)
	switch kind {
	case KindAll, KindNotes, KindMindmap, KindFlashcards, KindMCQs:
		return kind, nil
	default:
		return "", ErrInvalidArtifactKind
	}
}

// SingleKinds lists the four concrete artifact kinds, in the order the
// bulk generation path produces them.
func SingleKinds() []ArtifactKind {
	return []ArtifactKind{KindNotes, KindMindmap, KindFlashcards, KindMCQs}
}

// Notes is the singleton notes artifact for a topic: a short summary, a
// longer explanation, real-life analogies and a diagram description.
type Notes struct {
	ID                 uuid.UUID `json:"id"`
	TopicID            uuid.UUID `json:"topic_id"`
	Summary            string    `json:"summary"`
	DetailedContent    string    `json:"detailed_content"`
	Analogies          []string  `json:"analogies"`
	DiagramDescription string    `json:"diagram_description"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewNotes creates a Notes artifact bound to the given topic.
func NewNotes(topicID uuid.UUID, summary, detailed string, analogies []string, diagram string) (*Notes, error) {
	if topicID == uuid.Nil {
		return nil, ErrEmptyArtifactTopicID
	}

	now := time.Now().UTC()
	if analogies == nil {
		analogies = []string{}
	}

	return &Notes{
		ID:                 uuid.New(),
		TopicID:            topicID,
		Summary:            summary,
		DetailedContent:    detailed,
		Analogies:          analogies,
		DiagramDescription: diagram,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Context returns the notes text used as grounding for dependent
// generation calls. Prefers the detailed content, falls back to the summary.
func (n *Notes) Context() string {
	if n == nil {
		return ""
	}
	if n.DetailedContent != "" {
		return n.DetailedContent
	}
	return n.Summary
}

// MindmapBranch is one main branch of a mindmap with its sub-points.
type MindmapBranch struct {
	Title     string   `json:"title"`
	Subpoints []string `json:"subpoints"`
}

// Mindmap is the singleton mindmap artifact for a topic: a central label
// and an ordered list of branches.
type Mindmap struct {
	ID          uuid.UUID       `json:"id"`
	TopicID     uuid.UUID       `json:"topic_id"`
	CentralIdea string          `json:"central_idea"`
	Branches    []MindmapBranch `json:"branches"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewMindmap creates a Mindmap artifact bound to the given topic.
func NewMindmap(topicID uuid.UUID, centralIdea string, branches []MindmapBranch) (*Mindmap, error) {
	if topicID == uuid.Nil {
		return nil, ErrEmptyArtifactTopicID
	}

	if branches == nil {
		branches = []MindmapBranch{}
	}

	return &Mindmap{
		ID:          uuid.New(),
		TopicID:     topicID,
		CentralIdea: centralIdea,
		Branches:    branches,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Flashcard is one card of a topic's current flashcard set.
type Flashcard struct {
	ID         uuid.UUID `json:"id"`
	TopicID    uuid.UUID `json:"topic_id"`
	FrontText  string    `json:"front_text"`
	BackText   string    `json:"back_text"`
	Difficulty string    `json:"difficulty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewFlashcard creates a Flashcard bound to the given topic.
// An unrecognized difficulty tag falls back to medium.
func NewFlashcard(topicID uuid.UUID, front, back, difficulty string) (*Flashcard, error) {
	if topicID == uuid.Nil {
		return nil, ErrEmptyArtifactTopicID
	}

	if front == "" {
		return nil, ErrEmptyFlashcardFront
	}

	return &Flashcard{
		ID:         uuid.New(),
		TopicID:    topicID,
		FrontText:  front,
		BackText:   back,
		Difficulty: normalizeDifficulty(difficulty),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// MCQ is one multiple-choice question of a topic's current question set.
type MCQ struct {
	ID            uuid.UUID `json:"id"`
	TopicID       uuid.UUID `json:"topic_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption string    `json:"correct_option"`
	Explanation   string    `json:"explanation"`
	Difficulty    string    `json:"difficulty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewMCQ creates an MCQ bound to the given topic. The correct option tag
// must be one of a/b/c/d; an unrecognized difficulty falls back to medium.
func NewMCQ(topicID uuid.UUID, question, a, b, c, d, correct, explanation, difficulty string) (*MCQ, error) {
	if topicID == uuid.Nil {
		return nil, ErrEmptyArtifactTopicID
	}

	if question == "" {
		return nil, ErrEmptyMCQQuestion
	}

	switch correct {
	case "a", "b", "c", "d":
	default:
		return nil, ErrInvalidMCQCorrect
	}

	return &MCQ{
		ID:            uuid.New(),
		TopicID:       topicID,
		QuestionText:  question,
		OptionA:       a,
		OptionB:       b,
		OptionC:       c,
		OptionD:       d,
		CorrectOption: correct,
		Explanation:   explanation,
		Difficulty:    normalizeDifficulty(difficulty),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func normalizeDifficulty(d string) string {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}
