package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bartab-service/internal/group"
	"bartab-service/internal/ordering"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type GroupRepo interface {
	CreateGroup(ctx context.Context, name, creatorUserID, barID, tableID string) (ordering.Group, bool, error)
	JoinGroup(ctx context.Context, groupID, userID string) (ordering.Group, error)
}

type GroupsHandler struct {
	Groups GroupRepo
	Store  TabStore
	Logger *zap.Logger
}

func (h *GroupsHandler) Register(r *chi.Mux) {
	r.Post("/api/creategroup", h.createGroup)
	r.Post("/api/group/{groupID}/join", h.joinGroup)
	r.Get("/api/group/{groupID}/qr", h.groupQR)
	r.Post("/api/scan", h.scan)
}

type createGroupReq struct {
	Name          string `json:"name"`
	CreatorUserID string `json:"creator_user_id"`
	BarID         string `json:"bar_id"`
	TableID       string `json:"table_id"`
}

type createGroupResp struct {
	GroupID string `json:"group_id"`
	Existed bool   `json:"existed"`
	State   string `json:"state"`
}

func (h *GroupsHandler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CreatorUserID == "" || req.BarID == "" || req.TableID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("Grupo de %s", req.CreatorUserID)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// the response state drives the client's screen: a failed create
	// reports NoGroup so the user can retry
	flow := group.NewCreator()
	g, existed, err := h.Groups.CreateGroup(ctx, req.Name, req.CreatorUserID, req.BarID, req.TableID)
	if err != nil {
		h.Logger.Warn("create group",
			zap.String("table_id", req.TableID),
			zap.String("state", string(flow.State())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create group")
		return
	}
	if err := flow.To(group.StateGroupCreated); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createGroupResp{
		GroupID: g.ID,
		Existed: existed,
		State:   string(flow.State()),
	})
}

type joinGroupReq struct {
	UserID string `json:"user_id"`
}

type groupContextResp struct {
	BarID   string `json:"bar_id"`
	TableID string `json:"table_id"`
	GroupID string `json:"group_id"`
}

func (h *GroupsHandler) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req joinGroupReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	g, err := h.Groups.JoinGroup(ctx, chi.URLParam(r, "groupID"), req.UserID)
	if errors.Is(err, ordering.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if errors.Is(err, ordering.ErrGroupClosed) {
		writeError(w, http.StatusGone, "group closed")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, groupContextResp{BarID: g.BarID, TableID: g.TableID, GroupID: g.ID})
}

// groupQR renders the invite QR for an open group. The payload mirrors
// the client's scan contract field for field.
func (h *GroupsHandler) groupQR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := group.Payload{
		BarID:         q.Get("bar_id"),
		TableID:       q.Get("table_id"),
		UserID:        q.Get("user_id"),
		GroupID:       chi.URLParam(r, "groupID"),
		OrderTotalID:  q.Get("orderTotal_id"),
		CreatorUserID: q.Get("user_id"),
	}
	if p.BarID == "" || p.TableID == "" {
		writeError(w, http.StatusBadRequest, "missing bar_id or table_id")
		return
	}

	png, err := group.QRPNG(p, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type scanReq struct {
	UserID  string `json:"user_id"`
	Payload string `json:"payload"`
}

type scanResp struct {
	Flow         string `json:"flow"` // group | invite
	BarID        string `json:"bar_id"`
	TableID      string `json:"table_id"`
	GroupID      string `json:"group_id,omitempty"`
	OrderTotalID string `json:"orderTotal_id"`
	State        string `json:"state,omitempty"`
}

// scan routes a decoded QR: group payloads join the shared tab, bare
// table payloads open the solo/invite flow, minting an order session if
// the code did not carry one.
func (h *GroupsHandler) scan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	p, err := group.ParsePayload([]byte(req.Payload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid QR payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderTotalID := p.OrderTotalID
	if orderTotalID == "" {
		sess, err := h.Store.CreateOrderSession(ctx, req.UserID, p.BarID, p.TableID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not create session")
			return
		}
		orderTotalID = sess.ID
	}

	if !p.HasGroup() {
		writeJSON(w, http.StatusOK, scanResp{
			Flow:         "invite",
			BarID:        p.BarID,
			TableID:      p.TableID,
			OrderTotalID: orderTotalID,
		})
		return
	}

	flow := group.NewScanner()
	g, err := h.Groups.JoinGroup(ctx, p.GroupID, req.UserID)
	if errors.Is(err, ordering.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if errors.Is(err, ordering.ErrGroupClosed) {
		writeError(w, http.StatusGone, "group closed")
		return
	}
	if err != nil {
		// still at Scanned; the client may retry or fall back to the
		// ungrouped flow
		h.Logger.Warn("join group",
			zap.String("group_id", p.GroupID),
			zap.String("state", string(flow.State())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not join group")
		return
	}
	if err := flow.To(group.StateJoined); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, scanResp{
		Flow:         "group",
		BarID:        g.BarID,
		TableID:      g.TableID,
		GroupID:      g.ID,
		OrderTotalID: orderTotalID,
		State:        string(flow.State()),
	})
}
