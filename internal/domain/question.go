package domain

import (
	"html"
	"math/rand"

	"github.com/google/uuid"
)

// NewQuestion builds a Question from the raw provider fields. The question
// text is HTML-entity decoded for display; if decoding yields nothing the raw
// text is kept instead of failing construction.
//
// The presented order is fixed to ["True", "False"] for true/false questions
// (exactly one incorrect answer and a literal "True"/"False" correct answer).
// Every other answer set is uniformly shuffled.
func NewQuestion(text, correctAnswer string, incorrectAnswers []string) Question {
	return Question{
		QuestionID:       uuid.NewString(),
		Text:             decodeText(text),
		CorrectAnswer:    correctAnswer,
		IncorrectAnswers: incorrectAnswers,
		PresentedAnswers: presentAnswers(correctAnswer, incorrectAnswers),
	}
}

func decodeText(raw string) string {
	decoded := html.UnescapeString(raw)
	if decoded == "" {
		return raw
	}
	return decoded
}

func presentAnswers(correct string, incorrect []string) []string {
	if len(incorrect) == 1 && (correct == "True" || correct == "False") {
		return []string{"True", "False"}
	}

	answers := make([]string, 0, len(incorrect)+1)
	answers = append(answers, incorrect...)
	answers = append(answers, correct)

	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	return answers
}
