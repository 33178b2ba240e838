package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultPageLimit = int32(10)
	maxPageLimit     = int32(100)
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type Pagination struct {
	Page       int32 `json:"page"`
	Limit      int32 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func NewPagination(page, limit int32, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// PageRequest is embedded by list requests that take page/limit query params.
type PageRequest struct {
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
}

func (r *PageRequest) GetPage() int32  { return r.Page }
func (r *PageRequest) GetLimit() int32 { return r.Limit }

func pageRequestFromContext(ctx echo.Context) (PageRequest, error) {
	req := PageRequest{Page: 1, Limit: defaultPageLimit}

	if raw := strings.TrimSpace(ctx.QueryParam("page")); raw != "" {
		page, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return req, err
		}
		req.Page = int32(page)
	}
	if raw := strings.TrimSpace(ctx.QueryParam("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return req, err
		}
		req.Limit = int32(limit)
	}
	return req, nil
}

func (r *PageRequest) validate() error {
	if r.Page < 1 {
		return errors.New("page must be >= 1")
	}
	if r.Limit < 1 || r.Limit > maxPageLimit {
		return errors.New("limit must be between 1 and 100")
	}
	return nil
}
