package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"triviad/internal/domain"
	"triviad/internal/errors"
	"triviad/internal/event"
	"triviad/internal/session"
)

type Config struct {
	Router   gin.IRouter
	EventBus *event.Bus
	Session  *session.Service
}

// API is the renderer-facing surface: commands come in over HTTP, state goes
// out as responses and as pushes on the watch channel.
type API struct {
	session *session.Service
	watch   *watcher
}

func New(c Config) *API {
	a := &API{
		session: c.Session,
		watch:   newWatcher(),
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/session", a.StartSession)
	v1.GET("/session", a.GetSession)
	v1.PUT("/session/answers", a.SelectAnswer)
	v1.POST("/session/submit", a.Submit)
	v1.GET("/session/watch", a.WatchSession)

	// Every engine event becomes a push to the watching renderers.
	for _, name := range []string{
		domain.EventNameSessionLoaded,
		domain.EventNameSessionUpdated,
		domain.EventNameSessionSubmitted,
	} {
		c.EventBus.Subscribe(name, func(ctx context.Context, e event.Event) error {
			return a.watch.broadcast(ctx, e.Name(), toSessionResponse(snapshotOf(e)))
		})
	}

	return a
}

func snapshotOf(e event.Event) domain.SessionSnapshot {
	switch ev := e.(type) {
	case domain.EventSessionLoaded:
		return ev.Snapshot
	case domain.EventSessionUpdated:
		return ev.Snapshot
	case domain.EventSessionSubmitted:
		return ev.Snapshot
	}
	return domain.SessionSnapshot{}
}

type startSessionRequest struct {
	CategoryID       int    `json:"category_id" binding:"required"`
	Difficulty       string `json:"difficulty" binding:"required"`
	Type             string `json:"type" binding:"required"`
	Amount           int    `json:"amount" binding:"required,min=1"`
	TimeLimitSeconds int    `json:"time_limit_seconds" binding:"required,min=1"`
}

// StartSession handles configureAndStart: fetch questions, replace the
// session, start the countdown.
func (a *API) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := a.session.ConfigureAndStart(c.Request.Context(), session.StartRequest{
		CategoryID:       req.CategoryID,
		Difficulty:       domain.Difficulty(strings.ToLower(req.Difficulty)),
		Type:             domain.QuestionType(strings.ToLower(req.Type)),
		Amount:           req.Amount,
		TimeLimitSeconds: req.TimeLimitSeconds,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(snap))
}

func (a *API) GetSession(c *gin.Context) {
	snap, ok := a.session.Snapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(snap))
}

type selectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

func (a *API) SelectAnswer(c *gin.Context) {
	var req selectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := a.session.SelectAnswer(c.Request.Context(), req.QuestionID, req.Answer)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(snap))
}

func (a *API) Submit(c *gin.Context) {
	snap, err := a.session.Submit(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(snap))
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

type sessionResponse struct {
	Questions            []questionResponse `json:"questions"`
	Selections           map[string]string  `json:"selections"`
	TimeRemainingSeconds int                `json:"time_remaining_seconds"`
	Submitted            bool               `json:"submitted"`
	AllAnswered          bool               `json:"all_answered"`
	Result               *resultResponse    `json:"result,omitempty"`
}

type questionResponse struct {
	QuestionID    string   `json:"question_id"`
	Text          string   `json:"text"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correct_answer"`
}

type resultResponse struct {
	Score    int    `json:"score"`
	Total    int    `json:"total"`
	Accuracy string `json:"accuracy"`
}

func toSessionResponse(snap domain.SessionSnapshot) sessionResponse {
	resp := sessionResponse{
		Questions:            make([]questionResponse, 0, len(snap.Questions)),
		Selections:           snap.Selections,
		TimeRemainingSeconds: snap.TimeRemainingSeconds,
		Submitted:            snap.Submitted,
		AllAnswered:          snap.AllAnswered,
	}

	for _, q := range snap.Questions {
		resp.Questions = append(resp.Questions, questionResponse{
			QuestionID:    q.QuestionID,
			Text:          q.Text,
			Answers:       q.PresentedAnswers,
			CorrectAnswer: q.CorrectAnswer,
		})
	}

	if snap.Result != nil {
		resp.Result = &resultResponse{
			Score:    snap.Result.Score,
			Total:    snap.Result.Total,
			Accuracy: snap.Result.Accuracy.StringFixed(2),
		}
	}

	return resp
}
