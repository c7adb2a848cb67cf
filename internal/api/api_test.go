package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triviad/internal/api"
	"triviad/internal/domain"
	"triviad/internal/errors"
	"triviad/internal/event"
	"triviad/internal/session"
	"triviad/internal/trivia"
)

type sessionResponse struct {
	Questions []struct {
		QuestionID    string   `json:"question_id"`
		Text          string   `json:"text"`
		Answers       []string `json:"answers"`
		CorrectAnswer string   `json:"correct_answer"`
	} `json:"questions"`
	Selections           map[string]string `json:"selections"`
	TimeRemainingSeconds int               `json:"time_remaining_seconds"`
	Submitted            bool              `json:"submitted"`
	AllAnswered          bool              `json:"all_answered"`
	Result               *struct {
		Score    int    `json:"score"`
		Total    int    `json:"total"`
		Accuracy string `json:"accuracy"`
	} `json:"result"`
}

func TestAPI_SessionFlow(t *testing.T) {
	e, _ := makeAPI(t, staticFetcher(2))

	// Configure and start.
	start := doJSON(t, e, http.MethodPost, "/v1/session", `{
		"category_id": 9,
		"difficulty": "Easy",
		"type": "Multiple",
		"amount": 2,
		"time_limit_seconds": 30
	}`)
	require.Equal(t, http.StatusCreated, start.Code)

	var snap sessionResponse
	require.NoError(t, json.Unmarshal(start.Body.Bytes(), &snap))
	require.Len(t, snap.Questions, 2)
	assert.Equal(t, 30, snap.TimeRemainingSeconds)
	assert.False(t, snap.AllAnswered)

	// Answer both questions.
	for _, q := range snap.Questions {
		resp := doJSON(t, e, http.MethodPut, "/v1/session/answers",
			`{"question_id": "`+q.QuestionID+`", "answer": "`+q.CorrectAnswer+`"}`)
		require.Equal(t, http.StatusOK, resp.Code)
	}

	get := doJSON(t, e, http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, get.Code)
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &snap))
	assert.True(t, snap.AllAnswered)

	// Submit and check the score.
	submit := doJSON(t, e, http.MethodPost, "/v1/session/submit", "")
	require.Equal(t, http.StatusOK, submit.Code)
	require.NoError(t, json.Unmarshal(submit.Body.Bytes(), &snap))
	assert.True(t, snap.Submitted)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 2, snap.Result.Score)
	assert.Equal(t, 2, snap.Result.Total)
	assert.Equal(t, "1.00", snap.Result.Accuracy)

	// Selections are frozen after submission.
	late := doJSON(t, e, http.MethodPut, "/v1/session/answers",
		`{"question_id": "`+snap.Questions[0].QuestionID+`", "answer": "nope"}`)
	assert.Equal(t, http.StatusConflict, late.Code)

	// Submit stays idempotent.
	again := doJSON(t, e, http.MethodPost, "/v1/session/submit", "")
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestAPI_StartSessionValidation(t *testing.T) {
	e, _ := makeAPI(t, staticFetcher(1))

	resp := doJSON(t, e, http.MethodPost, "/v1/session", `{"amount": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAPI_StartSessionProviderDown(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context, req trivia.FetchRequest) ([]domain.Question, error) {
		return nil, errors.New(errors.CodeUnavailable, errors.WithMessagef("provider down"))
	})
	e, _ := makeAPI(t, fetch)

	resp := doJSON(t, e, http.MethodPost, "/v1/session", `{
		"category_id": 17,
		"difficulty": "easy",
		"type": "boolean",
		"amount": 1,
		"time_limit_seconds": 10
	}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	// No session exists after a failed fetch.
	get := doJSON(t, e, http.MethodGet, "/v1/session", "")
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestAPI_GetSessionWithoutSession(t *testing.T) {
	e, _ := makeAPI(t, staticFetcher(1))

	resp := doJSON(t, e, http.MethodGet, "/v1/session", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAPI_WatchPushesSessionEvents(t *testing.T) {
	e, _ := makeAPI(t, staticFetcher(1))

	ts := httptest.NewServer(e)
	defer ts.Close()

	start := doJSON(t, e, http.MethodPost, "/v1/session", `{
		"category_id": 9,
		"difficulty": "easy",
		"type": "multiple",
		"amount": 1,
		"time_limit_seconds": 10
	}`)
	require.Equal(t, http.StatusCreated, start.Code)

	conn, _, err := websocketDial(ts.URL + "/v1/session/watch")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The watch channel opens with the current snapshot.
	var n api.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "session.snapshot", n.Event)

	// A submit shows up as a push.
	submit := doJSON(t, e, http.MethodPost, "/v1/session/submit", "")
	require.Equal(t, http.StatusOK, submit.Code)

	for {
		require.NoError(t, conn.ReadJSON(&n))
		if n.Event == domain.EventNameSessionSubmitted {
			break
		}
	}
}

// --- helpers ---

func makeAPI(t *testing.T, fetch session.Fetcher) (*gin.Engine, *session.Service) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	e := gin.New()
	eb := event.NewBus()

	svc := session.NewService(session.Config{
		EventBus: eb,
		Trivia:   fetch,
		NewTickerFunc: func(time.Duration) session.Ticker {
			return &idleTicker{ch: make(chan time.Time)}
		},
	})

	api.New(api.Config{
		Router:   e,
		EventBus: eb,
		Session:  svc,
	})

	return e, svc
}

func websocketDial(httpURL string) (*websocket.Conn, *http.Response, error) {
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http")
	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func doJSON(t *testing.T, e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func staticFetcher(n int) session.Fetcher {
	return fetcherFunc(func(ctx context.Context, req trivia.FetchRequest) ([]domain.Question, error) {
		questions := make([]domain.Question, 0, n)
		for i := 0; i < n; i++ {
			questions = append(questions, domain.NewQuestion("question", "right", []string{"wrong a", "wrong b"}))
		}
		return questions, nil
	})
}

type fetcherFunc func(ctx context.Context, req trivia.FetchRequest) ([]domain.Question, error)

func (f fetcherFunc) Fetch(ctx context.Context, req trivia.FetchRequest) ([]domain.Question, error) {
	return f(ctx, req)
}

// idleTicker never fires; API tests drive the session by hand.
type idleTicker struct {
	ch chan time.Time
}

func (t *idleTicker) C() <-chan time.Time { return t.ch }

func (t *idleTicker) Stop() {}
