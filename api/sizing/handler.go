// Package sizing exposes the submission and polling endpoints over HTTP.
package sizing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/logger"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/orderid"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/kilianp07/recsizing/pkg/export"
)

// Response messages.
const (
	MsgAccepted     = "Processing has started. Use the order ID for status updates."
	MsgPending      = "Order found but not yet processed."
	MsgNotFound     = "Order not found."
	MsgInvalidInput = "Invalid sizing request."
)

// Submitter admits sizing requests.
type Submitter interface {
	Submit(ctx context.Context, req model.Request) (string, error)
}

// Finder reads orders and their assembled results.
type Finder interface {
	Lookup(ctx context.Context, id string) (assembler.Lookup, error)
}

// OrderResponse is returned on admission and for non-complete orders.
type OrderResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}

// ErrorResponse lists admission errors.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// Handler serves the sizing endpoints.
type Handler struct {
	jobs    Submitter
	results Finder
	log     logger.Logger
}

// NewHandler returns a handler submitting to jobs and polling results.
func NewHandler(jobs Submitter, results Finder, log logger.Logger) *Handler {
	return &Handler{jobs: jobs, results: results, log: log}
}

// Register mounts the sizing routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/sizing", h.SubmitPlain)
	r.POST("/sizing_with_shared_meter", h.SubmitShared)
	r.GET("/get_sizing/:order_id", h.Poll)
	r.GET("/get_sizing/:order_id/export", h.Export)
}

// SubmitPlain handles POST /sizing.
func (h *Handler) SubmitPlain(c *gin.Context) {
	var p model.PlainPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: MsgInvalidInput, Errors: bindErrors(err)})
		return
	}
	h.submit(c, p.Request())
}

// SubmitShared handles POST /sizing_with_shared_meter.
func (h *Handler) SubmitShared(c *gin.Context) {
	var p model.SharedPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: MsgInvalidInput, Errors: bindErrors(err)})
		return
	}
	h.submit(c, p.Request())
}

func (h *Handler) submit(c *gin.Context, req model.Request) {
	id, err := h.jobs.Submit(c.Request.Context(), req)
	if errors.Is(err, model.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: MsgInvalidInput, Errors: splitErrors(err)})
		return
	}
	if err != nil {
		h.log.Errorf("submit %s request: %v", req.Variant(), err)
		c.JSON(http.StatusInternalServerError, OrderResponse{Message: "Order could not be created."})
		return
	}
	c.JSON(http.StatusAccepted, OrderResponse{Message: MsgAccepted, OrderID: id})
}

// Poll handles GET /get_sizing/:order_id.
func (h *Handler) Poll(c *gin.Context) {
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, l.Response)
}

// Export handles GET /get_sizing/:order_id/export?format=csv|xlsx. Orders
// that are not complete answer like Poll.
func (h *Handler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, OrderResponse{Message: "format must be csv or xlsx", OrderID: c.Param("order_id")})
		return
	}
	l, ok := h.lookup(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv"
	write := export.WriteCSV
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		write = export.WriteXLSX
	}
	if err := write(&buf, *l.Response); err != nil {
		h.log.Errorf("export %s as %s: %v", l.Order.ID, format, err)
		c.JSON(http.StatusInternalServerError, OrderResponse{Message: "Export failed.", OrderID: l.Order.ID})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+l.Order.ID+"."+format+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// lookup writes the non-complete answers and reports whether l carries a
// response to serve.
func (h *Handler) lookup(c *gin.Context) (assembler.Lookup, bool) {
	id := c.Param("order_id")
	if !orderid.Valid(id) {
		c.JSON(http.StatusNotFound, OrderResponse{Message: MsgNotFound, OrderID: id})
		return assembler.Lookup{}, false
	}
	l, err := h.results.Lookup(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, OrderResponse{Message: MsgNotFound, OrderID: id})
		return l, false
	case err != nil:
		h.log.Errorf("lookup %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, OrderResponse{Message: "Order could not be read.", OrderID: id})
		return l, false
	}

	switch l.Order.State() {
	case model.StatePending:
		c.JSON(http.StatusAccepted, OrderResponse{Message: MsgPending, OrderID: id})
		return l, false
	case model.StateComplete:
		return l, true
	}
	c.JSON(statusOf(l.Order.Error), OrderResponse{Message: l.Order.Message, OrderID: id})
	return l, false
}

// statusOf maps an error code to its HTTP status. Unknown codes are
// internal errors.
func statusOf(code model.ErrorCode) int {
	n, err := strconv.Atoi(string(code))
	if err != nil || n < 400 || n > 599 {
		return http.StatusInternalServerError
	}
	return n
}

func bindErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Namespace()+": failed on "+fe.Tag())
	}
	return out
}

func splitErrors(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
