package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/domain"
)

// handleHealth reports liveness plus the loaded reference versions, so
// operators can confirm which rule tables are serving.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"timestamp":          time.Now().UTC(),
		"reference_versions": s.tables.Versions(),
	})
}

// handleAnalyze runs one pharmacogenomic analysis request.
func (s *Server) handleAnalyze(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req domain.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid request body: " + err.Error(),
			"request_id": requestID,
		})
		return
	}

	report, err := s.analyzer.Analyze(c.Request.Context(), requestID, &req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
		}).WithError(err).Error("Analysis request failed")

		switch {
		case domain.IsFatalInput(err):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      err.Error(),
				"request_id": requestID,
			})
		case isConfigurationFault(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":      "reference data unavailable",
				"request_id": requestID,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "analysis failed",
				"request_id": requestID,
			})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleReferenceVersions reports the versions of the loaded tables.
func (s *Server) handleReferenceVersions(c *gin.Context) {
	c.JSON(http.StatusOK, s.tables.Versions())
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// handleAuditRecords lists rule-evaluation audit records, newest first.
// Pagination parameters are clamped to sane bounds before they reach
// the store.
func (s *Server) handleAuditRecords(c *gin.Context) {
	if s.auditStore == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "auditing is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, err := s.auditStore.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list audit records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit records"})
		return
	}

	total, err := s.auditStore.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to count audit records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count audit records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func isConfigurationFault(err error) bool {
	var cf *domain.ConfigurationFault
	return errors.As(err, &cf)
}
