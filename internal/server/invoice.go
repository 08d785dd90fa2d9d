package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/smallbiznis/escolar/internal/snapshot"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": inv})
}

// UpdateInvoice edits status and notes; any other field is refused.
func (s *Server) UpdateInvoice(c *gin.Context) {
	documentID := strings.TrimSpace(c.Param("documentId"))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	var rejected []string
	for key := range raw {
		if !invoicedomain.EditableFields[key] {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		AbortWithError(c, &ValidationErrors{Errors: immutableFieldErrors(rejected)})
		return
	}

	var req invoicedomain.UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	inv, err := s.invoiceSvc.Update(c.Request.Context(), documentID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("documentId"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type backfillRequest struct {
	BatchSize int  `json:"batchSize"`
	DryRun    bool `json:"dryRun"`
}

func (s *Server) BackfillSnapshots(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.backfiller.Run(c.Request.Context(), snapshot.BackfillRequest{
		BatchSize: req.BatchSize,
		DryRun:    req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func immutableFieldErrors(fields []string) []ValidationError {
	out := make([]ValidationError, 0, len(fields))
	for _, f := range fields {
		out = append(out, ValidationError{
			Field:   f,
			Code:    invoicedomain.ErrImmutableInvoice.Error(),
			Message: "only status and notes can be edited",
		})
	}
	return out
}
