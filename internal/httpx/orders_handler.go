package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bartab-service/internal/ordering"
	"bartab-service/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CatalogRepo interface {
	ListBars(ctx context.Context) ([]ordering.Bar, error)
	GetBar(ctx context.Context, barID string) (ordering.Bar, error)
	ListProducts(ctx context.Context, barID string) ([]ordering.Product, error)
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, draft ordering.OrderDraft) (ordering.Order, error)
	GetOrder(ctx context.Context, orderID string) (ordering.Order, error)
	MarkPendingPayment(ctx context.Context, barID, tableID string) error
	SubstituteItem(ctx context.Context, orderID, productID, substituteID string) (ordering.Order, error)
	History(ctx context.Context, barID string) ([]ordering.HistoryOrder, error)
}

// TabStore is the slice of the session store the order flow touches.
type TabStore interface {
	CreateOrderSession(ctx context.Context, userID, barID, tableID string) (session.OrderSession, error)
	GetOrderSession(ctx context.Context, id string) (session.OrderSession, error)
	CartQuantities(ctx context.Context, sessionID string) (map[string]int, error)
	SetCartQuantity(ctx context.Context, sessionID, productID string, qty int) error
	ClearCart(ctx context.Context, sessionID string) error
	AppendExistingOrder(ctx context.Context, barID, tableID string, o ordering.Order) error
	ExistingOrders(ctx context.Context, barID, tableID string) ([]ordering.Order, error)
	ConfirmPending(ctx context.Context, barID, tableID string) (session.PendingSet, error)
}

type OrdersHandler struct {
	Catalog CatalogRepo
	Repo    OrderRepo
	Store   TabStore
	Logger  *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/api/bars", h.listBars)
	r.Get("/api/bars/{barID}", h.getBar)
	r.Get("/api/bars/{barID}/products", h.listProducts)
	r.Post("/api/orders/create-session", h.createSession)
	r.Put("/api/sessions/{sessionID}/cart", h.adjustCart)
	r.Get("/api/sessions/{sessionID}/cart", h.getCart)
	r.Post("/api/orders", h.createOrder)
	r.Post("/api/orders/confirm", h.confirmOrders)
	r.Get("/api/orders/{orderID}", h.getOrder)
	r.Post("/api/orders/{orderID}/substitute", h.substituteItem)
	r.Get("/api/history/{barID}", h.history)
}

func (h *OrdersHandler) listBars(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bars, err := h.Catalog.ListBars(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

func (h *OrdersHandler) getBar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bar, err := h.Catalog.GetBar(ctx, chi.URLParam(r, "barID"))
	if errors.Is(err, ordering.ErrBarNotFound) {
		writeError(w, http.StatusNotFound, "bar not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bar)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := h.Catalog.ListProducts(ctx, chi.URLParam(r, "barID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type createSessionReq struct {
	UserID  string `json:"user_id"`
	BarID   string `json:"bar_id"`
	TableID string `json:"table_id"`
}

func (h *OrdersHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || req.BarID == "" || req.TableID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sess, err := h.Store.CreateOrderSession(ctx, req.UserID, req.BarID, req.TableID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type adjustCartReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type adjustCartResp struct {
	Applied    int `json:"applied"`
	TotalCents int `json:"total_cents"`
}

// adjustCart sets one product's quantity in the session cart. The
// response carries the applied (possibly clamped) quantity and the live
// total, so the client can tell a clamp from an accept.
func (h *OrdersHandler) adjustCart(w http.ResponseWriter, r *http.Request) {
	var req adjustCartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing product_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, sess, err := h.loadCart(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.cartError(w, err)
		return
	}

	applied, err := cart.SetQuantity(req.ProductID, req.Qty)
	if errors.Is(err, ordering.ErrUnknownProduct) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Store.SetCartQuantity(ctx, sess.ID, req.ProductID, applied); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, adjustCartResp{Applied: applied, TotalCents: cart.TotalCents()})
}

type cartResp struct {
	Lines      []ordering.CartLine `json:"products"`
	TotalCents int                 `json:"total_cents"`
}

func (h *OrdersHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cart, _, err := h.loadCart(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.cartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Lines: cart.Lines(), TotalCents: cart.TotalCents()})
}

func (h *OrdersHandler) loadCart(ctx context.Context, sessionID string) (*ordering.Cart, session.OrderSession, error) {
	sess, err := h.Store.GetOrderSession(ctx, sessionID)
	if err != nil {
		return nil, session.OrderSession{}, err
	}
	products, err := h.Catalog.ListProducts(ctx, sess.BarID)
	if err != nil {
		return nil, session.OrderSession{}, err
	}
	cart := ordering.NewCart(products)
	quantities, err := h.Store.CartQuantities(ctx, sess.ID)
	if err != nil {
		return nil, session.OrderSession{}, err
	}
	for id, q := range quantities {
		// stale hash entries for removed products are dropped silently
		_, _ = cart.SetQuantity(id, q)
	}
	return cart, sess, nil
}

func (h *OrdersHandler) cartError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

type createOrderReq struct {
	BarID        string `json:"bar_id"`
	TableID      string `json:"table_id"`
	UserID       string `json:"user_id"`
	GroupID      string `json:"orderGroup_id"`
	OrderTotalID string `json:"orderTotal_id"`
	SpecialNotes string `json:"special_notes"`
	Products     []struct {
		ProductID string `json:"product_id"`
		Qty       int    `json:"quantity"`
	} `json:"products"`
}

type createOrderResp struct {
	OrderID    string              `json:"order_id"`
	TotalCents int                 `json:"total_cents"`
	Lines      []ordering.CartLine `json:"products"`
}

// createOrder submits one round of cart selections. An empty round is a
// no-op rejection: nothing is written anywhere.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BarID == "" || req.TableID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "no products selected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines := make([]ordering.CartLine, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, ordering.CartLine{ProductID: p.ProductID, Qty: p.Qty})
	}
	draft := ordering.OrderDraft{
		BarID:        req.BarID,
		TableID:      req.TableID,
		UserID:       req.UserID,
		GroupID:      req.GroupID,
		SpecialNotes: req.SpecialNotes,
		Lines:        lines,
		TraceID:      r.Header.Get("X-Request-Id"),
	}

	o, err := h.Repo.CreateOrder(ctx, draft)
	if errors.Is(err, ordering.ErrEmptyOrder) {
		writeError(w, http.StatusBadRequest, "no products selected")
		return
	}
	if errors.Is(err, ordering.ErrUnknownProduct) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// the order is durable at this point; a failed tab append only costs
	// the summary screen a round until the next refresh
	if err := h.Store.AppendExistingOrder(ctx, o.BarID, o.TableID, o); err != nil {
		h.Logger.Warn("append existing order",
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
	if req.OrderTotalID != "" {
		if err := h.Store.ClearCart(ctx, req.OrderTotalID); err != nil {
			h.Logger.Warn("clear cart", zap.String("session_id", req.OrderTotalID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusAccepted, createOrderResp{
		OrderID:    o.ID,
		TotalCents: o.TotalCents,
		Lines:      o.Lines,
	})
}

type confirmOrdersReq struct {
	BarID   string `json:"bar_id"`
	TableID string `json:"table_id"`
}

// confirmOrders freezes the table's submitted rounds into the pending
// set the payment flow will consume.
func (h *OrdersHandler) confirmOrders(w http.ResponseWriter, r *http.Request) {
	var req confirmOrdersReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BarID == "" || req.TableID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	set, err := h.Store.ConfirmPending(ctx, req.BarID, req.TableID)
	if errors.Is(err, session.ErrNoPending) {
		writeError(w, http.StatusConflict, "no orders to confirm")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// the durable rows follow the tab: SUBMITTED -> PENDING_PAYMENT.
	// Retrying the confirmation re-snapshots the same pending set, so a
	// failure here is safe to surface.
	if err := h.Repo.MarkPendingPayment(ctx, req.BarID, req.TableID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if errors.Is(err, ordering.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type substituteReq struct {
	ProductID    string `json:"product_id"`
	SubstituteID string `json:"substitute_product_id"`
}

// substituteItem swaps an unavailable product on an open order; the bar
// display triggers this when the kitchen runs out of something.
func (h *OrdersHandler) substituteItem(w http.ResponseWriter, r *http.Request) {
	var req substituteReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.SubstituteID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.SubstituteItem(ctx, chi.URLParam(r, "orderID"), req.ProductID, req.SubstituteID)
	if errors.Is(err, ordering.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if errors.Is(err, ordering.ErrOrderClosed) {
		writeError(w, http.StatusConflict, "order already finalized")
		return
	}
	if errors.Is(err, ordering.ErrUnknownProduct) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Repo.History(ctx, chi.URLParam(r, "barID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
