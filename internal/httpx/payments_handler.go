package httpx

import (
	"context"
	"net/http"
	"time"

	"bartab-service/internal/ordering"
	"bartab-service/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentStore is the slice of the session store the payment flow
// touches.
type PaymentStore interface {
	TakePending(ctx context.Context, barID, tableID string) (session.PendingSet, bool, error)
	AppendCompleted(ctx context.Context, barID string, rec ordering.CompletedOrder) error
}

type PaymentRepo interface {
	CompletePayment(ctx context.Context, rec ordering.CompletedOrder, tableID string) error
}

type PaymentsHandler struct {
	Store  PaymentStore
	Repo   PaymentRepo
	Logger *zap.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments", h.confirmPayment)
}

type paymentReq struct {
	BarID         string `json:"bar_id"`
	TableID       string `json:"table_id"`
	PaymentMethod string `json:"payment_method"`
}

// confirmPayment finalizes the table's pending set: one completed-order
// record lands in the bar's history and the pending set is gone. The
// method label is recorded as-is; nothing is charged.
func (h *PaymentsHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BarID == "" || req.TableID == "" || req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	set, found, err := h.Store.TakePending(ctx, req.BarID, req.TableID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusConflict, "no pending orders for table")
		return
	}

	rec := ordering.CompletedOrder{
		ID:            uuid.NewString(),
		BarID:         req.BarID,
		Date:          time.Now().UTC(),
		TotalCents:    set.TotalCents,
		Status:        string(ordering.StatusCompleted),
		PaymentMethod: req.PaymentMethod,
	}

	if err := h.Store.AppendCompleted(ctx, req.BarID, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Repo.CompletePayment(ctx, rec, req.TableID); err != nil {
		// the pending set is already consumed at this point
		h.Logger.Error("complete payment",
			zap.String("bar_id", req.BarID),
			zap.String("table_id", req.TableID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "payment recorded locally but not finalized")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
