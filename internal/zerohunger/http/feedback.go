package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

type FeedbackHandler struct {
	FeedbackService *service.FeedbackService
}

// HandleSend handles POST /feedback
//
//	@Summary		Send feedback
//	@Description	Goes to receiver_id, or to every admin when receiver_id is empty.
//	@Tags			Feedback
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.FeedbackRequest	true	"Message"
//	@Success		201		{object}	httpx.Envelope{data=[]zhclient.Feedback}
//	@Failure		400		{object}	httpx.Envelope	"Empty message"
//	@Failure		404		{object}	httpx.Envelope	"Unknown receiver, or no admins"
//	@Router			/feedback [post]
func (h *FeedbackHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req zhclient.FeedbackRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	var sent []domain.Feedback
	if receiver := strings.TrimSpace(req.ReceiverID); receiver != "" {
		f, err := h.FeedbackService.Send(r.Context(), user, receiver, req.Message)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		sent = []domain.Feedback{f}
	} else {
		fs, err := h.FeedbackService.SendToAdmins(r.Context(), user, req.Message)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		sent = fs
	}

	out := make([]zhclient.Feedback, 0, len(sent))
	for _, f := range sent {
		out = append(out, toFeedback(f))
	}
	respond(w, r, http.StatusCreated, "Feedback sent", out, "/feedback")
}

// HandleList handles GET /feedback
//
//	@Summary		Feedback inbox and outbox
//	@Description	Received entries carry their replies.
//	@Tags			Feedback
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=zhclient.FeedbackList}
//	@Router			/feedback [get]
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	received, err := h.FeedbackService.ListReceived(ctx, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sent, err := h.FeedbackService.ListSent(ctx, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "", zhclient.FeedbackList{
		Received: toFeedbackEntries(received),
		Sent:     toFeedbackEntries(sent),
	})
}

// HandleReply handles POST /admin/feedbacks
//
//	@Summary		Reply to feedback
//	@Description	Sends the reply back to the original sender and marks the entry replied.
//	@Tags			Feedback
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.ReplyRequest	true	"Reply"
//	@Success		201		{object}	httpx.Envelope{data=zhclient.Feedback}
//	@Failure		404		{object}	httpx.Envelope
//	@Router			/admin/feedbacks [post]
func (h *FeedbackHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())

	var req zhclient.ReplyRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	f, err := h.FeedbackService.Reply(r.Context(), req.FeedbackID, admin, req.Reply)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Reply sent", toFeedback(f), "/feedback")
}
