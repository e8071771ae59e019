package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/pkg/db/pagination"
)

func (s *Server) SubmitQuotation(c *gin.Context) {
	var req quotationdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotationSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) TrackQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Track(c.Request.Context(), strings.TrimSpace(c.Param("reference")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListQuotations(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		Email  string `form:"email"`
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, to, err := parseTimeRange(c, "created")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.quotationSvc.List(c.Request.Context(), quotationdomain.ListRequest{
		Pagination:  query.Pagination,
		Status:      strings.TrimSpace(query.Status),
		Email:       strings.TrimSpace(query.Email),
		Search:      strings.TrimSpace(query.Search),
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetQuotationStats(c *gin.Context) {
	resp, err := s.quotationSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// OpenQuotation is the admin detail view. Opening a pending quotation marks
// it viewed.
func (s *Server) OpenQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuotationStatus(c *gin.Context) {
	var req quotationdomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotationSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuotationNotes(c *gin.Context) {
	var req quotationdomain.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotationSvc.UpdateNotes(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConvertQuotation(c *gin.Context) {
	var req quotationdomain.ConvertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.quotationSvc.ConvertToInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ExpireQuotations(c *gin.Context) {
	expired, err := s.quotationSvc.ExpireStale(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"expired": expired}})
}

func (s *Server) DeleteQuotation(c *gin.Context) {
	if err := s.quotationSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RenderQuotationPDF(c *gin.Context) {
	body, filename, err := s.quotationSvc.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writePDF(c, body, filename)
}

func isQuotationValidationError(err error) bool {
	switch {
	case errors.Is(err, quotationdomain.ErrInvalidID),
		errors.Is(err, quotationdomain.ErrInvalidCustomerName),
		errors.Is(err, quotationdomain.ErrInvalidCustomerEmail),
		errors.Is(err, quotationdomain.ErrInvalidItems),
		errors.Is(err, quotationdomain.ErrInvalidItemName),
		errors.Is(err, quotationdomain.ErrInvalidQuantity),
		errors.Is(err, quotationdomain.ErrInvalidUnitPrice),
		errors.Is(err, quotationdomain.ErrInvalidAmount),
		errors.Is(err, quotationdomain.ErrTotalMismatch),
		errors.Is(err, quotationdomain.ErrInvalidStatus),
		errors.Is(err, quotationdomain.ErrInvalidReference),
		errors.Is(err, quotationdomain.ErrInvalidTimeRange),
		errors.Is(err, quotationdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}
