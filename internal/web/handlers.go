// internal/web/handlers.go - Retention policy CRUD and history handlers
package web

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/gin-gonic/gin"
    "github.com/sirupsen/logrus"
    "promkeeper/internal/database"
    "promkeeper/internal/retention"
)

type createPolicyRequest struct {
    MetricNamePattern string  `json:"metric_name_pattern"`
    RetentionDays     float64 `json:"retention_days"`
    Description       string  `json:"description"`
    Enabled           *bool   `json:"enabled"`
}

type updatePolicyRequest struct {
    MetricNamePattern *string  `json:"metric_name_pattern"`
    RetentionDays     *float64 `json:"retention_days"`
    Description       *string  `json:"description"`
    Enabled           *bool    `json:"enabled"`
}

func (s *Server) getPolicies(c *gin.Context) {
    filters := database.PolicyFilters{}
    if enabledStr := c.Query("enabled"); enabledStr != "" {
        enabled := enabledStr == "true"
        filters.Enabled = &enabled
    }

    policies, err := s.store.GetPolicies(c.Request.Context(), filters)
    if err != nil {
        logrus.WithError(err).Error("Failed to get policies")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get policies"})
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "data":  policies,
        "count": len(policies),
    })
}

func (s *Server) getPolicy(c *gin.Context) {
    id := c.Param("id")

    policy, err := s.store.GetPolicy(c.Request.Context(), id)
    if err != nil {
        if errors.Is(err, database.ErrNotFound) {
            c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get policy"})
        return
    }

    c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) createPolicy(c *gin.Context) {
    var req createPolicyRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    // Policies default to enabled, matching the dashboard form
    enabled := true
    if req.Enabled != nil {
        enabled = *req.Enabled
    }

    policy := &database.RetentionPolicy{
        MetricNamePattern: req.MetricNamePattern,
        RetentionDays:     req.RetentionDays,
        Description:       req.Description,
        Enabled:           enabled,
    }

    if err := retention.ValidatePolicy(policy); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    if err := s.store.CreatePolicy(c.Request.Context(), policy); err != nil {
        if errors.Is(err, database.ErrDuplicatePattern) {
            c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
            return
        }
        logrus.WithError(err).Error("Failed to create policy")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create policy"})
        return
    }

    logrus.WithFields(logrus.Fields{
        "policy":  policy.ID,
        "pattern": policy.MetricNamePattern,
        "days":    policy.RetentionDays,
    }).Info("Created retention policy")

    c.JSON(http.StatusCreated, gin.H{"data": policy})
}

func (s *Server) updatePolicy(c *gin.Context) {
    id := c.Param("id")

    var req updatePolicyRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    policy, err := s.store.GetPolicy(c.Request.Context(), id)
    if err != nil {
        if errors.Is(err, database.ErrNotFound) {
            c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get policy"})
        return
    }

    if req.MetricNamePattern != nil {
        policy.MetricNamePattern = *req.MetricNamePattern
    }
    if req.RetentionDays != nil {
        policy.RetentionDays = *req.RetentionDays
    }
    if req.Description != nil {
        policy.Description = *req.Description
    }
    if req.Enabled != nil {
        policy.Enabled = *req.Enabled
    }

    if err := retention.ValidatePolicy(policy); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    if err := s.store.UpdatePolicy(c.Request.Context(), policy); err != nil {
        if errors.Is(err, database.ErrDuplicatePattern) {
            c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
            return
        }
        logrus.WithError(err).Error("Failed to update policy")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update policy"})
        return
    }

    logrus.WithField("policy", id).Info("Updated retention policy")
    c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) deletePolicy(c *gin.Context) {
    id := c.Param("id")

    if err := s.store.DeletePolicy(c.Request.Context(), id); err != nil {
        if errors.Is(err, database.ErrNotFound) {
            c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
            return
        }
        logrus.WithError(err).Error("Failed to delete policy")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete policy"})
        return
    }

    logrus.WithField("policy", id).Info("Deleted retention policy")
    c.JSON(http.StatusOK, gin.H{"message": "Policy deleted"})
}

func (s *Server) getPolicyHistory(c *gin.Context) {
    id := c.Param("id")

    limit := 100
    if limitStr := c.Query("limit"); limitStr != "" {
        if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
            limit = parsed
        }
    }

    records, err := s.store.GetExecutions(c.Request.Context(), database.ExecutionFilters{
        PolicyID: id,
        Limit:    limit,
    })
    if err != nil {
        logrus.WithError(err).Error("Failed to get execution history")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get execution history"})
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "data":  records,
        "count": len(records),
    })
}
