// internal/web/execute_handlers.go - Manual execution, dry-run and pattern testing
package web

import (
    "errors"
    "io"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/sirupsen/logrus"
    "promkeeper/internal/database"
    "promkeeper/internal/retention"
)

type executeRequest struct {
    DryRun bool `json:"dry_run"`
    Force  bool `json:"force"`
}

type testPatternRequest struct {
    Pattern string `json:"pattern"`
}

// POST /api/policies/:id/execute
func (s *Server) executePolicy(c *gin.Context) {
    id := c.Param("id")

    var req executeRequest
    if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    mode := retention.ModeApply
    if req.DryRun {
        mode = retention.ModeDryRun
    }

    outcome, err := s.engine.ExecutePolicy(c.Request.Context(), id, mode, req.Force)
    if err != nil {
        s.renderExecutionError(c, outcome, err)
        return
    }

    c.JSON(http.StatusOK, gin.H{"data": outcome})
}

// POST /api/policies/execute-all
func (s *Server) executeAllPolicies(c *gin.Context) {
    records, err := s.engine.ExecuteAll(c.Request.Context())
    if err != nil {
        logrus.WithError(err).Error("Manual execute-all failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "data":  records,
        "count": len(records),
    })
}

// POST /api/patterns/test
func (s *Server) testPattern(c *gin.Context) {
    var req testPatternRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    report, err := s.engine.TestPattern(c.Request.Context(), req.Pattern)
    if err != nil {
        var patternErr *retention.InvalidPatternError
        if errors.As(err, &patternErr) {
            c.JSON(http.StatusBadRequest, gin.H{"error": patternErr.Error()})
            return
        }
        if errors.Is(err, retention.ErrCatalogUnavailable) {
            c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }

    c.JSON(http.StatusOK, gin.H{"data": report})
}

// renderExecutionError maps the execution error taxonomy onto HTTP statuses.
// When a record exists (the attempt ran but failed) it is returned alongside
// the error so callers still see accurate counts.
func (s *Server) renderExecutionError(c *gin.Context, outcome *retention.ExecutionOutcome, err error) {
    body := gin.H{"error": err.Error()}
    if outcome != nil {
        body["data"] = outcome
    }

    var patternErr *retention.InvalidPatternError
    var partialErr *retention.PartialDeletionError

    switch {
    case errors.Is(err, database.ErrNotFound):
        c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
    case errors.Is(err, retention.ErrPolicyDisabled):
        c.JSON(http.StatusConflict, body)
    case errors.Is(err, retention.ErrPolicyBusy):
        c.JSON(http.StatusConflict, body)
    case errors.As(err, &patternErr):
        c.JSON(http.StatusBadRequest, body)
    case errors.Is(err, retention.ErrCatalogUnavailable),
        errors.Is(err, retention.ErrDeletionUnavailable),
        errors.As(err, &partialErr):
        c.JSON(http.StatusBadGateway, body)
    default:
        logrus.WithError(err).Error("Policy execution failed")
        c.JSON(http.StatusInternalServerError, body)
    }
}
