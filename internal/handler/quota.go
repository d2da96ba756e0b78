package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/ledger"
	"github.com/iliyamo/ration-connect/internal/middleware"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/service"
)

// Ledger is the monthly quota ledger.
type Ledger interface {
	ComputeUsage(ctx context.Context, profileID uint64, month string) (ledger.MonthlyQuota, error)
	ListRecords(ctx context.Context, profileID uint64, month string) ([]model.QuotaUsageRecord, error)
	Record(ctx context.Context, in service.RecordInput) (model.QuotaUsageRecord, ledger.MonthlyQuota, error)
}

// QuotaHandler serves the /v1/quota routes.
type QuotaHandler struct {
	Ledger Ledger
}

func NewQuotaHandler(l Ledger) *QuotaHandler { return &QuotaHandler{Ledger: l} }

type postingReq struct {
	QuantityKg     float64 `json:"quantity_kg"`
	DeliveryMethod string  `json:"delivery_method"`
}

// Quota returns the signed-in profile's quota for ?month=YYYY-MM.
func (h *QuotaHandler) Quota(c echo.Context) error {
	id, ok := middleware.ProfileID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.quotaFor(c, id)
}

// ProfileQuota returns the quota of the profile in the path.  Admin only.
func (h *QuotaHandler) ProfileQuota(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid profile id"})
	}
	return h.quotaFor(c, id)
}

func (h *QuotaHandler) quotaFor(c echo.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	q, err := h.Ledger.ComputeUsage(ctx, id, c.QueryParam("month"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toQuota(q))
}

// Records lists the signed-in profile's postings for ?month=YYYY-MM.
func (h *QuotaHandler) Records(c echo.Context) error {
	id, ok := middleware.ProfileID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Ledger.ListRecords(ctx, id, c.QueryParam("month"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]recordResp, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecord(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"records": out})
}

// Claim posts a claim with a delivery method.
func (h *QuotaHandler) Claim(c echo.Context) error { return h.post(c, model.StatusClaimed) }

// Sell posts a sale back to the shop.
func (h *QuotaHandler) Sell(c echo.Context) error { return h.post(c, model.StatusSold) }

// Convert posts a conversion to another commodity.
func (h *QuotaHandler) Convert(c echo.Context) error { return h.post(c, model.StatusConverted) }

func (h *QuotaHandler) post(c echo.Context, status string) error {
	id, ok := middleware.ProfileID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req postingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	qty, err := service.QuantityFromKg(req.QuantityKg)
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, q, err := h.Ledger.Record(ctx, service.RecordInput{
		ProfileID:      id,
		Status:         status,
		Quantity:       qty,
		DeliveryMethod: req.DeliveryMethod,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"record": toRecord(rec), "quota": toQuota(q)})
}
