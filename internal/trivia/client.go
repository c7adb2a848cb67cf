package trivia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"triviad/internal/domain"
	"triviad/internal/errors"
	"triviad/internal/telemetry"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	// BaseURL of the trivia provider, e.g. https://opentdb.com.
	BaseURL string
	// Timeout bounds one fetch end to end. Defaults to 10s.
	Timeout time.Duration
}

// Client fetches question batches from the trivia provider. Every call is a
// fresh request: no retries, no caching.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(c Config) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := &http.Client{Timeout: timeout}
	telemetry.MonitorHTTPClient(hc)

	return &Client{
		baseURL: strings.TrimRight(c.BaseURL, "/"),
		http:    hc,
	}
}

type FetchRequest struct {
	Amount     int
	CategoryID int
	Difficulty domain.Difficulty
	Type       domain.QuestionType
}

// payload mirrors the provider's response shape.
type payload struct {
	Results []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch requests one batch of questions and decodes it into domain questions.
// Transport failures map to CodeUnavailable, malformed payloads to
// CodeDataLoss; the caller decides what to do with its current session.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) ([]domain.Question, error) {
	if req.Amount < 1 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("amount must be at least 1, got %d", req.Amount))
	}

	q := url.Values{}
	q.Set("amount", strconv.Itoa(req.Amount))
	q.Set("category", strconv.Itoa(req.CategoryID))
	q.Set("difficulty", strings.ToLower(string(req.Difficulty)))
	q.Set("type", strings.ToLower(string(req.Type)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api.php?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Internal(err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("trivia provider unreachable"),
			errors.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("trivia provider returned %s", resp.Status))
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.New(errors.CodeDataLoss,
			errors.WithMessagef("malformed provider payload"),
			errors.WithCause(err))
	}

	if len(p.Results) == 0 {
		return nil, errors.New(errors.CodeDataLoss,
			errors.WithMessagef("provider returned no questions"))
	}

	questions := make([]domain.Question, 0, len(p.Results))
	for _, r := range p.Results {
		if r.CorrectAnswer == "" || len(r.IncorrectAnswers) == 0 {
			return nil, errors.New(errors.CodeDataLoss,
				errors.WithMessagef("provider result is missing answers"))
		}
		questions = append(questions, domain.NewQuestion(r.Question, r.CorrectAnswer, r.IncorrectAnswers))
	}

	return questions, nil
}
