package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/postgres"
	"github.com/cwrk-planet/messaging-service/internal/service"
	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/internal/validate"

	"github.com/go-chi/chi/v5"
)

// SystemAnnouncer posts a system message into a channel and broadcasts
// it to live subscribers. Implemented by the websocket server.
type SystemAnnouncer interface {
	Announce(ctx context.Context, channelID string, userID int64, text string)
}

type Handler struct {
	channelSvc      *service.ChannelService
	messageSvc      *service.MessageService
	notificationSvc *service.NotificationService
	presenceSvc     *service.PresenceService
	announcer       SystemAnnouncer
	val             *validate.Validator
}

func NewHandler(channel *service.ChannelService, message *service.MessageService, notification *service.NotificationService, presence *service.PresenceService, announcer SystemAnnouncer) *Handler {
	return &Handler{
		channelSvc:      channel,
		messageSvc:      message,
		notificationSvc: notification,
		presenceSvc:     presence,
		announcer:       announcer,
		val:             validate.New(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels onto HTTP statuses and keeps the
// internal error out of the body for unexpected failures.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotMember):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadyMember):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, postgres.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("http handler error", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// POST /channels
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if errs := h.val.Struct(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errs[0].Error()})
		return
	}

	id := httpmw.Identity(r.Context())
	ch, err := h.channelSvc.Create(r.Context(), service.CreateChannelInput{
		TenantID:    id.TenantID,
		CreatorID:   id.UserID,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Type:        domain.ChannelType(req.Type),
		DirectPeer:  req.DirectPeer,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ChannelItem{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Icon:        ch.Icon,
		Type:        string(ch.Type),
		CreatedBy:   ch.CreatedBy,
		CreatedAt:   ch.CreatedAt,
	})
}

// GET /channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	items, err := h.channelSvc.List(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := ChannelsListResponse{Items: make([]ChannelItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, channelItem(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /channels/{id}
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	ch, err := h.channelSvc.Channel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if ch.TenantID != id.TenantID {
		writeErr(w, domain.ErrChannelNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ChannelItem{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Icon:        ch.Icon,
		Type:        string(ch.Type),
		CreatedBy:   ch.CreatedBy,
		CreatedAt:   ch.CreatedAt,
	})
}

// DELETE /channels/{id}
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	if err := h.channelSvc.DeleteChannel(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /channels/{id}/join
func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	m, err := h.channelSvc.Join(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyMember) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "member"})
			return
		}
		writeErr(w, err)
		return
	}
	if h.announcer != nil {
		h.announcer.Announce(r.Context(), m.ChannelID, id.UserID, "joined the channel")
	}
	writeJSON(w, http.StatusOK, MemberItem{
		UserID:   m.UserID,
		Role:     string(m.Role),
		Muted:    m.Muted,
		JoinedAt: m.JoinedAt,
	})
}

// POST /channels/{id}/leave
func (h *Handler) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	channelID := chi.URLParam(r, "id")
	// Announced before the membership goes away; the system message
	// needs the leaver to still be a member.
	if h.announcer != nil {
		if _, err := h.channelSvc.Membership(r.Context(), channelID, id.UserID); err == nil {
			h.announcer.Announce(r.Context(), channelID, id.UserID, "left the channel")
		}
	}
	if err := h.channelSvc.Leave(r.Context(), channelID, id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// POST /channels/{id}/invite
func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if errs := h.val.Struct(&req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errs[0].Error()})
		return
	}

	id := httpmw.Identity(r.Context())
	m, err := h.channelSvc.Invite(r.Context(), chi.URLParam(r, "id"), id.UserID, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MemberItem{
		UserID:   m.UserID,
		Role:     string(m.Role),
		Muted:    m.Muted,
		JoinedAt: m.JoinedAt,
	})
}

// GET /channels/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	channelID := chi.URLParam(r, "id")

	if _, err := h.channelSvc.Membership(r.Context(), channelID, id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	members, err := h.channelSvc.Members(r.Context(), channelID)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := MembersResponse{Items: make([]MemberItem, 0, len(members))}
	for _, m := range members {
		resp.Items = append(resp.Items, MemberItem{
			UserID:   m.UserID,
			Role:     string(m.Role),
			Muted:    m.Muted,
			JoinedAt: m.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /channels/{id}/read
func (h *Handler) MarkChannelRead(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	if err := h.channelSvc.MarkRead(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// PUT /channels/{id}/mute
func (h *Handler) MuteChannel(w http.ResponseWriter, r *http.Request) {
	var req MuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	id := httpmw.Identity(r.Context())
	if err := h.channelSvc.SetMuted(r.Context(), chi.URLParam(r, "id"), id.UserID, req.Muted); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"muted": req.Muted})
}

// GET /channels/{id}/messages?after=&limit=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	after := r.URL.Query().Get("after")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.messageSvc.History(r.Context(), chi.URLParam(r, "id"), id.UserID, after, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := HistoryResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, messageItem(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /messages/{id}/reactions
func (h *Handler) ListMessageReactions(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	items, err := h.messageSvc.Reactions(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := ReactionsResponse{Items: make([]ReactionItem, 0, len(items))}
	for _, rc := range items {
		resp.Items = append(resp.Items, ReactionItem{
			UserID:    rc.UserID,
			Emoji:     rc.Emoji,
			CreatedAt: rc.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /notifications?unread=&after=&limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	after := r.URL.Query().Get("after")
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.notificationSvc.List(r.Context(), id.TenantID, id.UserID, unreadOnly, after, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := NotificationsResponse{Items: make([]NotificationItem, 0, len(items)), NextCursor: next}
	for _, n := range items {
		resp.Items = append(resp.Items, notificationItem(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	if err := h.notificationSvc.MarkRead(r.Context(), id.TenantID, chi.URLParam(r, "id"), id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// DELETE /notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := httpmw.Identity(r.Context())
	if err := h.notificationSvc.Delete(r.Context(), id.TenantID, chi.URLParam(r, "id"), id.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /presence/{userID}
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || uid <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}
	p, err := h.presenceSvc.Get(r.Context(), uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PresenceItem{
		UserID:   p.UserID,
		Status:   string(p.Status),
		LastSeen: p.LastSeen,
	})
}
