package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
)

// ExportSEPA streams the batch archive, or returns its URL when the request
// asks for an upload.
func (s *Server) ExportSEPA(c *gin.Context) {
	var req exportdomain.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	statuses := splitList(c.QueryArray("statuses"))
	req.Statuses = make([]invoicedomain.Status, 0, len(statuses))
	for _, st := range statuses {
		req.Statuses = append(req.Statuses, invoicedomain.Status(st))
	}

	result, err := s.exporter.Export(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Export-Invoices", strconv.Itoa(result.Exported))
	c.Header("X-Export-Warnings", strconv.Itoa(len(result.Warnings)))
	c.Header("X-Export-Failures", strconv.Itoa(len(result.Failures)))
	if req.Upload {
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.FileName))
	c.Data(http.StatusOK, "application/zip", result.Data)
}
