package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/generator"
	"github.com/lamim/uxie/internal/grading"
	"github.com/lamim/uxie/internal/runs"
	"github.com/lamim/uxie/pkg/models"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createRun(c *gin.Context) {
	run, err := s.deps.Runs.Create(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to create run", "error", err)
		abort(c, http.StatusInternalServerError, "failed to create run")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": run.ID})
}

func (s *Server) startRun(c *gin.Context) {
	id := c.Query("runId")
	if id == "" {
		abort(c, http.StatusBadRequest, "runId is required")
		return
	}

	var req models.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = s.defaults.Difficulty
	}
	if req.Language == "" {
		req.Language = s.defaults.Language
	}
	if err := req.Validate(); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	err := s.deps.Runs.Start(c.Request.Context(), id, req, s.courseJob(req))
	switch {
	case errors.Is(err, runs.ErrNotFound):
		abort(c, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, runs.ErrNotPending):
		abort(c, http.StatusConflict, "run already started")
		return
	case errors.Is(err, runs.ErrShuttingDown):
		abort(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		s.logger.Error("Failed to start run", "run_id", id, "error", err)
		abort(c, http.StatusInternalServerError, "failed to start run")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": id, "status": models.RunRunning})
}

func (s *Server) courseJob(req models.CourseRequest) runs.Job {
	return func(ctx context.Context, report func(models.ProgressEvent)) (runs.Result, error) {
		outcome, err := s.deps.Runner.RunWithProgress(ctx, req, report)
		if err != nil {
			return runs.Result{}, err
		}
		return runs.Result{Course: &outcome.Course, PersistErr: outcome.PersistErr}, nil
	}
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.deps.Runs.Store().Get(c.Request.Context(), c.Param("runId"))
	if errors.Is(err, runs.ErrNotFound) {
		abort(c, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to load run", "error", err)
		abort(c, http.StatusInternalServerError, "failed to load run")
		return
	}
	c.JSON(http.StatusOK, run)
}

// streamRun sends each new progress event as it is recorded, then the
// final run once it reaches a terminal state
func (s *Server) streamRun(c *gin.Context) {
	id := c.Param("runId")
	ctx := c.Request.Context()
	st := s.deps.Runs.Store()

	run, err := st.Get(ctx, id)
	if errors.Is(err, runs.ErrNotFound) {
		abort(c, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, "failed to load run")
		return
	}

	sseHeaders(c)
	sent := 0
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		for _, ev := range run.Progress[sent:] {
			c.SSEvent("progress", ev)
		}
		sent = len(run.Progress)
		if run.Status.Terminal() {
			c.SSEvent("status", run)
			c.Writer.Flush()
			return
		}
		c.Writer.Flush()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		run, err = st.Get(ctx, id)
		if err != nil {
			c.SSEvent("error", err.Error())
			c.Writer.Flush()
			return
		}
	}
}

func (s *Server) grade(c *gin.Context) {
	var req grading.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.deps.Grader.Grade(c.Request.Context(), req)
	if errors.Is(err, grading.ErrCourseNotFound) {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("Grading failed", "course_id", req.CourseID, "error", err)
		abort(c, http.StatusBadGateway, "grading failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

type chatRequest struct {
	CourseID          string          `json:"courseId"`
	CourseTitle       string          `json:"courseTitle"`
	CourseDescription string          `json:"courseDescription"`
	Language          models.Language `json:"language"`
	Messages          []api.Message   `json:"messages"`
}

// chatTurn resolves the course context of a chat request
func (s *Server) chatTurn(c *gin.Context) (generator.ChatRequest, bool) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return generator.ChatRequest{}, false
	}
	if len(body.Messages) == 0 {
		abort(c, http.StatusBadRequest, "messages are required")
		return generator.ChatRequest{}, false
	}

	req := generator.ChatRequest{
		CourseTitle:       body.CourseTitle,
		CourseDescription: body.CourseDescription,
		Language:          body.Language,
		History:           body.Messages,
	}
	if strings.TrimSpace(body.CourseID) != "" {
		course, err := s.deps.Courses.GetCourse(c.Request.Context(), body.CourseID)
		if err != nil {
			s.logger.Error("Failed to load course for chat", "course_id", body.CourseID, "error", err)
			abort(c, http.StatusInternalServerError, "failed to load course")
			return generator.ChatRequest{}, false
		}
		if course == nil {
			abort(c, http.StatusNotFound, "course not found")
			return generator.ChatRequest{}, false
		}
		req.CourseTitle = course.Title
		req.CourseDescription = course.Description
		if req.Language == "" {
			req.Language = course.Language
		}
	}
	if req.Language == "" {
		req.Language = s.defaults.Language
	}
	return req, true
}

func (s *Server) chat(c *gin.Context) {
	req, ok := s.chatTurn(c)
	if !ok {
		return
	}
	reply, err := s.deps.Chat.ChatStream(c.Request.Context(), req, nil)
	if err != nil {
		s.chatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) chatStream(c *gin.Context) {
	req, ok := s.chatTurn(c)
	if !ok {
		return
	}

	sseHeaders(c)
	reply, err := s.deps.Chat.ChatStream(c.Request.Context(), req, func(delta string) {
		c.SSEvent("delta", delta)
		c.Writer.Flush()
	})
	if err != nil && !c.Writer.Written() {
		s.chatError(c, err)
		return
	}
	if err != nil {
		s.logger.Warn("Chat stream failed", "error", err)
		c.SSEvent("error", err.Error())
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", gin.H{"reply": reply})
	c.Writer.Flush()
}

func (s *Server) chatError(c *gin.Context, err error) {
	if errors.Is(err, generator.ErrChatUnavailable) {
		abort(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("Chat failed", "error", err)
	abort(c, http.StatusBadGateway, "chat failed")
}

type validateRequest struct {
	Code string `json:"code"`
}

func (s *Server) validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, s.deps.Validator.Validate(req.Code))
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}
