package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bartab-service/internal/group"
	"bartab-service/internal/ordering"
	"bartab-service/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- fakes ----

type fakeCatalog struct {
	products []ordering.Product
}

func (f *fakeCatalog) ListBars(context.Context) ([]ordering.Bar, error) {
	return []ordering.Bar{{ID: "b1", Name: "La Cantina"}}, nil
}

func (f *fakeCatalog) GetBar(_ context.Context, barID string) (ordering.Bar, error) {
	if barID != "b1" {
		return ordering.Bar{}, ordering.ErrBarNotFound
	}
	return ordering.Bar{ID: "b1", Name: "La Cantina"}, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, barID string) ([]ordering.Product, error) {
	var out []ordering.Product
	for _, p := range f.products {
		if p.BarID == barID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	catalog   *fakeCatalog
	created   []ordering.Order
	completed []ordering.CompletedOrder
	createErr error
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, draft ordering.OrderDraft) (ordering.Order, error) {
	if f.createErr != nil {
		return ordering.Order{}, f.createErr
	}
	if len(draft.Lines) == 0 {
		return ordering.Order{}, ordering.ErrEmptyOrder
	}
	byID := make(map[string]ordering.Product)
	for _, p := range f.catalog.products {
		byID[p.ID] = p
	}
	o := ordering.Order{
		ID:        uuid.NewString(),
		BarID:     draft.BarID,
		TableID:   draft.TableID,
		UserID:    draft.UserID,
		GroupID:   draft.GroupID,
		Status:    ordering.StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	for _, l := range draft.Lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return ordering.Order{}, fmt.Errorf("%w: %s", ordering.ErrUnknownProduct, l.ProductID)
		}
		qty := l.Qty
		if limit := ordering.CategoryCap(p.Category); qty > limit {
			qty = limit
		}
		if qty <= 0 {
			continue
		}
		o.Lines = append(o.Lines, ordering.CartLine{
			ProductID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Qty: qty, Category: p.Category,
		})
		o.TotalCents += p.PriceCents * qty
	}
	f.created = append(f.created, o)
	return o, nil
}

func (f *fakeOrderRepo) GetOrder(_ context.Context, orderID string) (ordering.Order, error) {
	for _, o := range f.created {
		if o.ID == orderID {
			return o, nil
		}
	}
	return ordering.Order{}, ordering.ErrOrderNotFound
}

func (f *fakeOrderRepo) MarkPendingPayment(_ context.Context, barID, tableID string) error {
	for i := range f.created {
		o := &f.created[i]
		if o.BarID == barID && o.TableID == tableID && o.Status == ordering.StatusSubmitted {
			o.Status = ordering.StatusPendingPayment
		}
	}
	return nil
}

func (f *fakeOrderRepo) SubstituteItem(_ context.Context, orderID, productID, substituteID string) (ordering.Order, error) {
	for i := range f.created {
		o := &f.created[i]
		if o.ID != orderID {
			continue
		}
		if o.Status == ordering.StatusCompleted || o.Status == ordering.StatusCancelled {
			return ordering.Order{}, ordering.ErrOrderClosed
		}
		var sub *ordering.Product
		for _, p := range f.catalog.products {
			if p.ID == substituteID && p.BarID == o.BarID {
				sub = &p
				break
			}
		}
		if sub == nil {
			return ordering.Order{}, fmt.Errorf("%w: %s", ordering.ErrUnknownProduct, substituteID)
		}
		for j := range o.Lines {
			l := &o.Lines[j]
			if l.ProductID != productID {
				continue
			}
			l.ProductID = sub.ID
			l.Name = sub.Name
			l.PriceCents = sub.PriceCents
			l.Category = sub.Category
			o.TotalCents = ordering.LinesTotal(o.Lines)
			return *o, nil
		}
		return ordering.Order{}, fmt.Errorf("%w: %s", ordering.ErrUnknownProduct, productID)
	}
	return ordering.Order{}, ordering.ErrOrderNotFound
}

func (f *fakeOrderRepo) History(context.Context, string) ([]ordering.HistoryOrder, error) {
	return nil, nil
}

func (f *fakeOrderRepo) CompletePayment(_ context.Context, rec ordering.CompletedOrder, _ string) error {
	f.completed = append(f.completed, rec)
	return nil
}

// fakeStore mirrors the redis-backed session store in memory.
type fakeStore struct {
	sessions  map[string]session.OrderSession
	carts     map[string]map[string]int
	existing  map[string][]ordering.Order
	pending   map[string]session.PendingSet
	completed map[string][]ordering.CompletedOrder
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  make(map[string]session.OrderSession),
		carts:     make(map[string]map[string]int),
		existing:  make(map[string][]ordering.Order),
		pending:   make(map[string]session.PendingSet),
		completed: make(map[string][]ordering.CompletedOrder),
	}
}

func tabKey(barID, tableID string) string { return barID + "/" + tableID }

func (f *fakeStore) CreateOrderSession(_ context.Context, userID, barID, tableID string) (session.OrderSession, error) {
	sess := session.OrderSession{
		ID: uuid.NewString(), UserID: userID, BarID: barID, TableID: tableID, CreatedAt: time.Now().UTC(),
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) GetOrderSession(_ context.Context, id string) (session.OrderSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return session.OrderSession{}, session.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeStore) CartQuantities(_ context.Context, sessionID string) (map[string]int, error) {
	out := make(map[string]int, len(f.carts[sessionID]))
	for k, v := range f.carts[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SetCartQuantity(_ context.Context, sessionID, productID string, qty int) error {
	if f.carts[sessionID] == nil {
		f.carts[sessionID] = make(map[string]int)
	}
	if qty <= 0 {
		delete(f.carts[sessionID], productID)
		return nil
	}
	f.carts[sessionID][productID] = qty
	return nil
}

func (f *fakeStore) ClearCart(_ context.Context, sessionID string) error {
	delete(f.carts, sessionID)
	return nil
}

func (f *fakeStore) AppendExistingOrder(_ context.Context, barID, tableID string, o ordering.Order) error {
	k := tabKey(barID, tableID)
	f.existing[k] = append(f.existing[k], o)
	return nil
}

func (f *fakeStore) ExistingOrders(_ context.Context, barID, tableID string) ([]ordering.Order, error) {
	return f.existing[tabKey(barID, tableID)], nil
}

func (f *fakeStore) ConfirmPending(_ context.Context, barID, tableID string) (session.PendingSet, error) {
	k := tabKey(barID, tableID)
	orders := f.existing[k]
	if len(orders) == 0 {
		return session.PendingSet{}, session.ErrNoPending
	}
	total := 0
	for _, o := range orders {
		total += ordering.LinesTotal(o.Lines)
	}
	set := session.PendingSet{Orders: orders, TotalCents: total, ConfirmedAt: time.Now().UTC()}
	f.pending[k] = set
	return set, nil
}

func (f *fakeStore) TakePending(_ context.Context, barID, tableID string) (session.PendingSet, bool, error) {
	k := tabKey(barID, tableID)
	set, ok := f.pending[k]
	if !ok {
		return session.PendingSet{}, false, nil
	}
	delete(f.pending, k)
	delete(f.existing, k)
	return set, true, nil
}

func (f *fakeStore) AppendCompleted(_ context.Context, barID string, rec ordering.CompletedOrder) error {
	f.completed[barID] = append(f.completed[barID], rec)
	return nil
}

type fakeGroups struct {
	groups   map[string]ordering.Group
	existed  bool
	lastName string
	joinErr  error
}

func (f *fakeGroups) CreateGroup(_ context.Context, name, creatorUserID, barID, tableID string) (ordering.Group, bool, error) {
	f.lastName = name
	for _, g := range f.groups {
		if g.BarID == barID && g.TableID == tableID {
			return g, true, nil
		}
	}
	g := ordering.Group{
		ID: uuid.NewString(), Name: name, CreatorUserID: creatorUserID,
		BarID: barID, TableID: tableID, CreatedAt: time.Now().UTC(),
	}
	if f.groups == nil {
		f.groups = make(map[string]ordering.Group)
	}
	f.groups[g.ID] = g
	return g, f.existed, nil
}

func (f *fakeGroups) JoinGroup(_ context.Context, groupID, _ string) (ordering.Group, error) {
	if f.joinErr != nil {
		return ordering.Group{}, f.joinErr
	}
	g, ok := f.groups[groupID]
	if !ok {
		return ordering.Group{}, ordering.ErrGroupNotFound
	}
	return g, nil
}

// ---- harness ----

type harness struct {
	router  *chi.Mux
	catalog *fakeCatalog
	repo    *fakeOrderRepo
	store   *fakeStore
	groups  *fakeGroups
}

func newHarness() *harness {
	catalog := &fakeCatalog{products: []ordering.Product{
		{ID: "p1", BarID: "b1", Name: "Mojito", PriceCents: 3500, Category: ordering.CategoryDrink},
		{ID: "p2", BarID: "b1", Name: "Tacos al Pastor", PriceCents: 8500, Category: ordering.CategoryFood},
	}}
	repo := &fakeOrderRepo{catalog: catalog}
	store := newFakeStore()
	groups := &fakeGroups{}

	r := chi.NewRouter()
	log := zap.NewNop()
	(&OrdersHandler{Catalog: catalog, Repo: repo, Store: store, Logger: log}).Register(r)
	(&GroupsHandler{Groups: groups, Store: store, Logger: log}).Register(r)
	(&PaymentsHandler{Store: store, Repo: repo, Logger: log}).Register(r)

	return &harness{router: r, catalog: catalog, repo: repo, store: store, groups: groups}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// ---- order flow ----

func TestCreateOrder_EmptyRoundIsNoOp(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/orders", map[string]any{
		"bar_id": "b1", "table_id": "t4", "user_id": "u1", "products": []any{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.repo.created, "nothing durable for an empty round")
	assert.Empty(t, h.store.existing, "nothing appended to the tab")
}

func TestCreateOrder_AppendsToTabAndClearsCart(t *testing.T) {
	h := newHarness()
	sess, err := h.store.CreateOrderSession(context.Background(), "u1", "b1", "t4")
	require.NoError(t, err)
	require.NoError(t, h.store.SetCartQuantity(context.Background(), sess.ID, "p1", 2))

	rec := h.do(t, http.MethodPost, "/api/orders", map[string]any{
		"bar_id": "b1", "table_id": "t4", "user_id": "u1",
		"orderTotal_id": sess.ID,
		"products": []map[string]any{
			{"product_id": "p1", "quantity": 2},
			{"product_id": "p2", "quantity": 1},
		},
	})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeBody[createOrderResp](t, rec)
	assert.Equal(t, 15500, resp.TotalCents)
	assert.Len(t, resp.Lines, 2)

	existing, err := h.store.ExistingOrders(context.Background(), "b1", "t4")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, resp.OrderID, existing[0].ID)

	qty, err := h.store.CartQuantities(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, qty, "cart cleared after submission")
}

func TestCreateOrder_ClampsOversizedQuantities(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/orders", map[string]any{
		"bar_id": "b1", "table_id": "t4", "user_id": "u1",
		"products": []map[string]any{{"product_id": "p1", "quantity": 40}},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeBody[createOrderResp](t, rec)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, ordering.MaxDrinkQty, resp.Lines[0].Qty)
	assert.Equal(t, ordering.MaxDrinkQty*3500, resp.TotalCents)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/orders", map[string]any{
		"bar_id": "b1", "table_id": "t4", "user_id": "u1",
		"products": []map[string]any{{"product_id": "ghost", "quantity": 1}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.store.existing)
}

// ---- cart ----

func TestAdjustCart_ClampAndTotal(t *testing.T) {
	h := newHarness()
	sess, err := h.store.CreateOrderSession(context.Background(), "u1", "b1", "t4")
	require.NoError(t, err)
	require.NoError(t, h.store.SetCartQuantity(context.Background(), sess.ID, "p2", 1))

	rec := h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/cart", map[string]any{
		"product_id": "p1", "quantity": 16,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[adjustCartResp](t, rec)
	assert.Equal(t, 15, resp.Applied)
	assert.Equal(t, 8500+15*3500, resp.TotalCents)

	qty, err := h.store.CartQuantities(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, qty["p1"], "the stored quantity is the clamped one")
}

func TestAdjustCart_UnknownProductAndSession(t *testing.T) {
	h := newHarness()
	sess, err := h.store.CreateOrderSession(context.Background(), "u1", "b1", "t4")
	require.NoError(t, err)

	rec := h.do(t, http.MethodPut, "/api/sessions/"+sess.ID+"/cart", map[string]any{
		"product_id": "ghost", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/sessions/nope/cart", map[string]any{
		"product_id": "p1", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCart(t *testing.T) {
	h := newHarness()
	sess, err := h.store.CreateOrderSession(context.Background(), "u1", "b1", "t4")
	require.NoError(t, err)
	require.NoError(t, h.store.SetCartQuantity(context.Background(), sess.ID, "p1", 2))
	require.NoError(t, h.store.SetCartQuantity(context.Background(), sess.ID, "p2", 1))

	rec := h.do(t, http.MethodGet, "/api/sessions/"+sess.ID+"/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[cartResp](t, rec)
	assert.Equal(t, 15500, resp.TotalCents)
	assert.Len(t, resp.Lines, 2)
}

// ---- confirm & pay ----

func submitRound(t *testing.T, h *harness) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/orders", map[string]any{
		"bar_id": "b1", "table_id": "t4", "user_id": "u1",
		"products": []map[string]any{
			{"product_id": "p1", "quantity": 2},
			{"product_id": "p2", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestConfirmOrders(t *testing.T) {
	h := newHarness()
	submitRound(t, h)
	submitRound(t, h)

	rec := h.do(t, http.MethodPost, "/api/orders/confirm", map[string]any{
		"bar_id": "b1", "table_id": "t4",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	set := decodeBody[session.PendingSet](t, rec)
	assert.Len(t, set.Orders, 2)
	assert.Equal(t, 2*15500, set.TotalCents, "total recomputed from line subtotals")

	for _, o := range h.repo.created {
		assert.Equal(t, ordering.StatusPendingPayment, o.Status,
			"confirmation freezes the durable rows for payment")
	}
}

func TestConfirmOrders_NothingToConfirm(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/api/orders/confirm", map[string]any{
		"bar_id": "b1", "table_id": "t4",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmPayment_ConsumesPendingExactlyOnce(t *testing.T) {
	h := newHarness()
	submitRound(t, h)

	rec := h.do(t, http.MethodPost, "/api/orders/confirm", map[string]any{
		"bar_id": "b1", "table_id": "t4",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/payments", map[string]any{
		"bar_id": "b1", "table_id": "t4", "payment_method": "card",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[ordering.CompletedOrder](t, rec)
	assert.Equal(t, 15500, paid.TotalCents)
	assert.Equal(t, string(ordering.StatusCompleted), paid.Status)
	assert.Equal(t, "card", paid.PaymentMethod)

	require.Len(t, h.store.completed["b1"], 1)
	require.Len(t, h.repo.completed, 1)

	// the pending set is gone; paying again is a conflict, not a double charge
	rec = h.do(t, http.MethodPost, "/api/payments", map[string]any{
		"bar_id": "b1", "table_id": "t4", "payment_method": "card",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, h.store.completed["b1"], 1)
}

func TestSubstituteItem(t *testing.T) {
	h := newHarness()
	submitRound(t, h)
	id := h.repo.created[0].ID

	// 2x Mojito becomes 2x Tacos al Pastor; qty sticks, price follows
	rec := h.do(t, http.MethodPost, "/api/orders/"+id+"/substitute", map[string]any{
		"product_id": "p1", "substitute_product_id": "p2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decodeBody[ordering.Order](t, rec)
	assert.Equal(t, 3*8500, o.TotalCents)

	rec = h.do(t, http.MethodPost, "/api/orders/"+id+"/substitute", map[string]any{
		"product_id": "p2", "substitute_product_id": "ghost",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/orders/"+uuid.NewString()+"/substitute", map[string]any{
		"product_id": "p1", "substitute_product_id": "p2",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubstituteItem_FinalizedOrder(t *testing.T) {
	h := newHarness()
	submitRound(t, h)
	h.repo.created[0].Status = ordering.StatusCompleted

	rec := h.do(t, http.MethodPost, "/api/orders/"+h.repo.created[0].ID+"/substitute", map[string]any{
		"product_id": "p1", "substitute_product_id": "p2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmPayment_MissingFields(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/api/payments", map[string]any{
		"bar_id": "b1", "table_id": "t4",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- groups & scan ----

func TestCreateGroup_DefaultsNameAndReportsExisted(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/creategroup", map[string]any{
		"creator_user_id": "u1", "bar_id": "b1", "table_id": "t4",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody[createGroupResp](t, rec)
	assert.False(t, first.Existed)
	assert.Equal(t, string(group.StateGroupCreated), first.State)
	assert.Equal(t, "Grupo de u1", h.groups.lastName)

	// a second create for the same table reuses the open group
	rec = h.do(t, http.MethodPost, "/api/creategroup", map[string]any{
		"creator_user_id": "u2", "bar_id": "b1", "table_id": "t4",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[createGroupResp](t, rec)
	assert.True(t, second.Existed)
	assert.Equal(t, first.GroupID, second.GroupID)
}

func TestCreateGroup_MissingFields(t *testing.T) {
	h := newHarness()
	rec := h.do(t, http.MethodPost, "/api/creategroup", map[string]any{"bar_id": "b1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinGroup_NotFoundAndClosed(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/group/nope/join", map[string]any{"user_id": "u2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.groups.joinErr = ordering.ErrGroupClosed
	rec = h.do(t, http.MethodPost, "/api/group/g1/join", map[string]any{"user_id": "u2"})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestScan_TablePayloadMintsSession(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/scan", map[string]any{
		"user_id": "u1",
		"payload": `{"bar_id":"b1","table_id":"t4"}`,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[scanResp](t, rec)
	assert.Equal(t, "invite", resp.Flow)
	assert.Equal(t, "b1", resp.BarID)
	assert.Equal(t, "t4", resp.TableID)
	require.NotEmpty(t, resp.OrderTotalID)

	sess, err := h.store.GetOrderSession(context.Background(), resp.OrderTotalID)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
}

func TestScan_GroupPayloadJoins(t *testing.T) {
	h := newHarness()
	g, _, err := h.groups.CreateGroup(context.Background(), "Grupo de u1", "u1", "b1", "t4")
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"bar_id":"b1","table_id":"t4","group_id":%q,"orderTotal_id":"ot-1","creator_user_id":"u1"}`, g.ID)
	rec := h.do(t, http.MethodPost, "/api/scan", map[string]any{
		"user_id": "u2", "payload": payload,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[scanResp](t, rec)
	assert.Equal(t, "group", resp.Flow)
	assert.Equal(t, g.ID, resp.GroupID)
	assert.Equal(t, string(group.StateJoined), resp.State)
	assert.Equal(t, "ot-1", resp.OrderTotalID, "the creator's session is reused, none is minted")
	assert.Empty(t, h.store.sessions)
}

func TestScan_InvalidPayload(t *testing.T) {
	h := newHarness()

	for _, payload := range []string{"not json", `{"table_id":"t4"}`, ""} {
		rec := h.do(t, http.MethodPost, "/api/scan", map[string]any{
			"user_id": "u1", "payload": payload,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload %q", payload)
	}
}

func TestScan_StaleGroupIsGone(t *testing.T) {
	h := newHarness()
	h.groups.joinErr = errors.New("boom")
	h.groups.groups = map[string]ordering.Group{"g1": {ID: "g1", BarID: "b1", TableID: "t4"}}

	rec := h.do(t, http.MethodPost, "/api/scan", map[string]any{
		"user_id": "u2",
		"payload": `{"bar_id":"b1","table_id":"t4","group_id":"g1","orderTotal_id":"ot-1"}`,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGroupQR(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodGet, "/api/group/g1/qr?bar_id=b1&table_id=t4&user_id=u1&orderTotal_id=ot-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = h.do(t, http.MethodGet, "/api/group/g1/qr?bar_id=b1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBarsAndProducts(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodGet, "/api/bars", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bars := decodeBody[[]ordering.Bar](t, rec)
	require.Len(t, bars, 1)

	rec = h.do(t, http.MethodGet, "/api/bars/b1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bar := decodeBody[ordering.Bar](t, rec)
	assert.Equal(t, "La Cantina", bar.Name)

	rec = h.do(t, http.MethodGet, "/api/bars/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/bars/b1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decodeBody[[]ordering.Product](t, rec)
	assert.Len(t, products, 2)
}

func TestGetOrder(t *testing.T) {
	h := newHarness()
	submitRound(t, h)
	id := h.repo.created[0].ID

	rec := h.do(t, http.MethodGet, "/api/orders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decodeBody[ordering.Order](t, rec)
	assert.Equal(t, id, o.ID)

	rec = h.do(t, http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
