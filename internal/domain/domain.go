package domain

import "github.com/shopspring/decimal"

// Difficulty of the questions requested from the trivia provider.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType selects between multiple-choice and true/false questions.
type QuestionType string

const (
	TypeMultiple QuestionType = "multiple"
	TypeBoolean  QuestionType = "boolean"
)

func (t QuestionType) Valid() bool {
	return t == TypeMultiple || t == TypeBoolean
}

// Category codes understood by the trivia provider.
const (
	CategoryGeneralKnowledge = 9
	CategoryScience          = 17
	CategoryMath             = 19
	CategoryHistory          = 23
)

// Question is one fetched trivia question plus its answer set. Questions are
// built at decode time and never mutated afterward.
type Question struct {
	// QuestionID is an opaque id generated at decode time. The provider has
	// no stable key, and question text may repeat within a batch.
	QuestionID       string
	Text             string
	CorrectAnswer    string
	IncorrectAnswers []string
	// PresentedAnswers is the display order shown to the user, computed once
	// at construction.
	PresentedAnswers []string
}

// Result is the final outcome of a submitted session.
type Result struct {
	Score    int
	Total    int
	Accuracy decimal.Decimal
}

// SessionSnapshot is the read-only view of the active session handed to the
// renderer.
type SessionSnapshot struct {
	Questions            []Question
	Selections           map[string]string
	TimeRemainingSeconds int
	Submitted            bool
	AllAnswered          bool
	Result               *Result
}
