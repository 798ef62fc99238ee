// Package api exposes the engine over HTTP for form frontends: one submit
// endpoint per (kind, section) plus read endpoints that return the record with
// its freshly projected lock state.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

type Handler struct {
	Ledger ledger.Ledger
}

// Register attaches the API routes to a router group.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/kinds", h.GetKinds)
	r.GET("/kinds/:kind/sections", h.GetSections)
	r.GET("/kinds/:kind/records", h.ListKeys)
	r.GET("/kinds/:kind/record", h.GetRecord)
	r.POST("/kinds/:kind/sections/:section", h.Submit)
}

// submitInput is one sub-form submission: the raw natural-key fields as the
// client entered them plus the section's partial payload.
type submitInput struct {
	Key     map[string]string `json:"key" binding:"required"`
	Payload map[string]any    `json:"payload"`
}

func (h *Handler) Submit(c *gin.Context) {
	kind := c.Param("kind")
	section := c.Param("section")

	var input submitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Ledger.SubmitSection(kind, section, input.Key, input.Payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetRecord(c *gin.Context) {
	kind := c.Param("kind")

	keyFields := make(map[string]string)
	for name, vals := range c.Request.URL.Query() {
		if len(vals) > 0 {
			keyFields[name] = vals[0]
		}
	}

	res, err := h.Ledger.GetRecord(kind, keyFields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetKinds(c *gin.Context) {
	kinds, err := h.Ledger.Kinds()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kinds)
}

func (h *Handler) GetSections(c *gin.Context) {
	sections, err := h.Ledger.Sections(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sections)
}

func (h *Handler) ListKeys(c *gin.Context) {
	keys, err := h.Ledger.ListKeys(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

// writeError maps engine errors onto HTTP statuses and a machine-readable
// code so the frontend can turn them into actionable prompts ("save primary
// data first", "this value is locked").
func writeError(c *gin.Context, err error) {
	code := ledger.CodeOf(err)
	body := gin.H{"error": err.Error(), "code": code}

	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}

	status := http.StatusInternalServerError
	switch code {
	case ledger.CodeUnknownKind, ledger.CodeUnknownSection, ledger.CodeNotFound:
		status = http.StatusNotFound
	case ledger.CodeInvalidKey:
		status = http.StatusBadRequest
	case ledger.CodePrimaryFirst, ledger.CodeConflict:
		status = http.StatusConflict
	case ledger.CodeValidation:
		status = http.StatusUnprocessableEntity
	case ledger.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}
