package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/patternbank/internal/learner"
	"github.com/fyrsmithlabs/patternbank/internal/pattern"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
	"github.com/fyrsmithlabs/patternbank/internal/search"
)

type learnRequest struct {
	BeforeCode string           `json:"before_code"`
	AfterCode  string           `json:"after_code"`
	Metrics    learner.Metrics  `json:"metrics"`
	Context    *pattern.Context `json:"context"`
}

type suggestRequest struct {
	Code          string           `json:"code"`
	Context       *pattern.Context `json:"context"`
	MinSimilarity float64          `json:"min_similarity,omitempty"`
	MaxResults    int              `json:"max_results,omitempty"`
}

type feedbackRequest struct {
	PatternID    string                `json:"pattern_id"`
	Action       pattern.Action        `json:"action"`
	Rating       int                   `json:"rating,omitempty"`
	Modification *pattern.Modification `json:"modification,omitempty"`
}

type importRequest struct {
	Patterns  []*pattern.Pattern `json:"patterns"`
	Overwrite bool               `json:"overwrite,omitempty"`
}

func (s *Server) handleLearn(c echo.Context) error {
	var req learnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.learner.LearnFromSuccess(req.BeforeCode, req.AfterCode, req.Metrics, req.Context)
	if err != nil {
		return statusError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordLearned(c.Request().Context(), string(res.Type))
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleSuggest(c echo.Context) error {
	var req suggestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	matches := s.learner.Suggestions(req.Code, req.Context, search.Options{
		MinSimilarity: req.MinSimilarity,
		MaxResults:    req.MaxResults,
	})
	if s.metrics != nil {
		s.metrics.RecordSearch(c.Request().Context())
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": matches})
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.learner.ProcessFeedback(req.PatternID, pattern.Feedback{
		Action:       req.Action,
		Rating:       req.Rating,
		Modification: req.Modification,
	})
	if err != nil {
		return statusError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordFeedback(c.Request().Context(), string(req.Action))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetPattern(c echo.Context) error {
	p, err := s.learner.GetPattern(c.Param("id"))
	if err != nil {
		return statusError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePattern(c echo.Context) error {
	if err := s.learner.DeletePattern(c.Param("id")); err != nil {
		return statusError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearch(c echo.Context) error {
	criteria := patternstore.Criteria{
		Type:     pattern.Type(c.QueryParam("type")),
		Language: c.QueryParam("language"),
		Category: c.QueryParam("category"),
	}
	if v := c.QueryParam("min_effectiveness"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid min_effectiveness")
		}
		criteria.MinEffectiveness = f
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		criteria.Limit = n
	}
	if field := c.QueryParam("sort"); field != "" {
		criteria.Sort = &patternstore.Sort{
			Field:     patternstore.SortField(field),
			Direction: c.QueryParam("direction"),
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"patterns": s.learner.Search(criteria),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"store":          s.learner.StoreStats(),
		"feedback_trend": s.learner.FeedbackTrend(),
	})
}

func (s *Server) handleEffectiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, s.learner.EffectivenessStats())
}

func (s *Server) handleCleanup(c echo.Context) error {
	res := s.learner.Cleanup()
	if s.metrics != nil {
		s.metrics.RecordEvicted(c.Request().Context(), len(res.Removed))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleExport(c echo.Context) error {
	var opts patternstore.ExportOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, s.learner.Export(opts))
}

func (s *Server) handleImport(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res := s.learner.Import(req.Patterns, patternstore.ImportOptions{Overwrite: req.Overwrite})
	return c.JSON(http.StatusOK, res)
}

// statusError maps engine errors onto HTTP status codes.
func statusError(err error) error {
	var verr *pattern.ValidationError
	switch {
	case errors.Is(err, pattern.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, pattern.ErrDuplicateID):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &verr),
		errors.Is(err, pattern.ErrInvalidPattern),
		errors.Is(err, pattern.ErrInvalidType),
		errors.Is(err, pattern.ErrInvalidRange),
		errors.Is(err, pattern.ErrEmptyCodeExample),
		errors.Is(err, pattern.ErrInvalidAction),
		errors.Is(err, pattern.ErrInvalidRating),
		errors.Is(err, pattern.ErrMissingModified):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
