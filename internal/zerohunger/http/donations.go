package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

// datetimeLocal is what an HTML datetime-local input submits.
const datetimeLocal = "2006-01-02T15:04"

// DonationHandler serves every role's view of the donation lifecycle.
type DonationHandler struct {
	DonationService *service.DonationService
}

func parseCookingTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, datetimeLocal} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &service.ValidationError{Fields: map[string]string{
		"cooking_time": "cooking_time must be RFC 3339 or " + datetimeLocal,
	}}
}

// list runs one of the per-role list views.
func (h *DonationHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, domain.User) ([]domain.DonationView, error),
) {
	user, _ := userFromContext(r.Context())
	vs, err := fn(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", toDonationViews(vs))
}

func anyone(fn func(context.Context) ([]domain.DonationView, error)) func(context.Context, domain.User) ([]domain.DonationView, error) {
	return func(ctx context.Context, _ domain.User) ([]domain.DonationView, error) { return fn(ctx) }
}

// ============================================================================
// Donor
// ============================================================================

// HandleDonate handles POST /donor/donate
//
//	@Summary		Donate food
//	@Tags			Donor
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.DonationRequest	true	"Donation"
//	@Success		201		{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		400		{object}	httpx.Envelope	"Validation failed"
//	@Failure		403		{object}	httpx.Envelope	"Not a donor"
//	@Router			/donor/donate [post]
func (h *DonationHandler) HandleDonate(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req zhclient.DonationRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	cooked, err := parseCookingTime(req.CookingTime)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := h.DonationService.Create(r.Context(), user, service.NewDonation{
		FoodType:    req.FoodType,
		Quantity:    req.Quantity,
		CookingTime: cooked,
		Address:     req.Address,
		Phone:       req.Phone,
		Message:     req.Message,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, "Donation submitted", toDonation(d), "/donor/donations/pending")
}

// HandleDonorPending handles GET /donor/donations/pending
//
//	@Summary		Donor's open donations
//	@Description	Pending, accepted, assigned and rejected donations of the caller.
//	@Tags			Donor
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/donor/donations/pending [get]
func (h *DonationHandler) HandleDonorPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.DonationService.DonorPending)
}

// HandleDonorPrevious handles GET /donor/donations/previous
//
//	@Summary		Donor's collected donations
//	@Tags			Donor
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/donor/donations/previous [get]
func (h *DonationHandler) HandleDonorPrevious(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.DonationService.DonorPrevious)
}

// HandleDelete handles DELETE /donor/donations/{id}
//
//	@Summary		Delete a rejected donation
//	@Tags			Donor
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope
//	@Failure		400	{object}	httpx.Envelope	"Donation is not rejected"
//	@Failure		404	{object}	httpx.Envelope
//	@Router			/donor/donations/{id} [delete]
func (h *DonationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.DonationService.DeleteRejected(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation deleted", nil, "/donor/donations/pending")
}

// ============================================================================
// Admin
// ============================================================================

// HandleAdminPending handles GET /admin/donations/pending
//
//	@Summary		Donations awaiting the admin
//	@Description	Pending, accepted and assigned donations.
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/admin/donations/pending [get]
func (h *DonationHandler) HandleAdminPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, anyone(h.DonationService.AdminPending))
}

// HandleAdminCollected handles GET /admin/donations/collected
//
//	@Summary		Collected donations
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/admin/donations/collected [get]
func (h *DonationHandler) HandleAdminCollected(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, anyone(h.DonationService.AdminCollected))
}

// HandleAdminGet handles GET /admin/donation/{id}
//
//	@Summary		Donation detail
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		404	{object}	httpx.Envelope
//	@Router			/admin/donation/{id} [get]
func (h *DonationHandler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	v, err := h.DonationService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", toDonationView(v))
}

// HandleAccept handles GET /admin/donation/accept/{id}
//
//	@Summary		Accept a pending donation
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		400	{object}	httpx.Envelope	"Not pending"
//	@Failure		404	{object}	httpx.Envelope
//	@Router			/admin/donation/accept/{id} [get]
func (h *DonationHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.DonationService.Accept(r.Context(), admin, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation accepted", toDonation(d), "/admin/donations/pending")
}

// HandleReject handles GET /admin/donation/reject/{id}
//
//	@Summary		Reject a pending or accepted donation
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		400	{object}	httpx.Envelope	"Not pending or accepted"
//	@Failure		404	{object}	httpx.Envelope
//	@Router			/admin/donation/reject/{id} [get]
func (h *DonationHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.DonationService.Reject(r.Context(), admin, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation rejected", toDonation(d), "/admin/donations/pending")
}

// HandleAssign handles POST /admin/donation/assign/{id}
//
//	@Summary		Assign an accepted donation to an agent
//	@Tags			Admin
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			id		path		string					true	"Donation ID"
//	@Param			request	body		zhclient.AssignRequest	true	"Agent and note"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		400		{object}	httpx.Envelope	"Not accepted, or agent_id is not an agent"
//	@Failure		404		{object}	httpx.Envelope
//	@Router			/admin/donation/assign/{id} [post]
func (h *DonationHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req zhclient.AssignRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	d, err := h.DonationService.Assign(r.Context(), admin, id, req.AgentID, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation assigned", toDonation(d), "/admin/donations/pending")
}

// ============================================================================
// Collector
// ============================================================================

// HandleCollectorAvailable handles GET /collector/donations/available
//
//	@Summary		Accepted donations open for collection
//	@Tags			Collector
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/collector/donations/available [get]
func (h *DonationHandler) HandleCollectorAvailable(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, anyone(h.DonationService.CollectorAvailable))
}

// HandleCollectorAssigned handles GET /collector/donations/assigned
//
//	@Summary		Donations assigned to agents
//	@Tags			Collector
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/collector/donations/assigned [get]
func (h *DonationHandler) HandleCollectorAssigned(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, anyone(h.DonationService.CollectorAssigned))
}

// HandleCollectorPrevious handles GET /collector/donations/previous
//
//	@Summary		Portions the caller collected
//	@Tags			Collector
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/collector/donations/previous [get]
func (h *DonationHandler) HandleCollectorPrevious(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.DonationService.CollectorPrevious)
}

// HandleCollect handles POST /collector/donation/collect/{id}
//
//	@Summary		Collect part of an accepted donation
//	@Description	Splits quantity off into a collected child record. The parent becomes collected when nothing remains.
//	@Tags			Collector
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			id		path		string					true	"Donation ID"
//	@Param			request	body		zhclient.CollectRequest	true	"Quantity"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.CollectResponse}
//	@Failure		400		{object}	httpx.Envelope	"Invalid quantity or state"
//	@Failure		409		{object}	httpx.Envelope	"Concurrent update, try again"
//	@Router			/collector/donation/collect/{id} [post]
func (h *DonationHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	collector, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req zhclient.CollectRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	res, err := h.DonationService.Collect(r.Context(), collector, id, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation collected", zhclient.CollectResponse{
		Parent: toDonation(res.Parent),
		Child:  toDonation(res.Child),
	}, "/collector/donations/available")
}

// ============================================================================
// Agent
// ============================================================================

// HandleAgentPending handles GET /agent/collections/pending
//
//	@Summary		Donations assigned to the caller
//	@Tags			Agent
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/agent/collections/pending [get]
func (h *DonationHandler) HandleAgentPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.DonationService.AgentPending)
}

// HandleAgentPrevious handles GET /agent/collections/previous
//
//	@Summary		Donations the caller collected
//	@Tags			Agent
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Donation}
//	@Router			/agent/collections/previous [get]
func (h *DonationHandler) HandleAgentPrevious(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.DonationService.AgentPrevious)
}

// HandleAgentGet handles GET /agent/collection/{id}
//
//	@Summary		Assigned donation detail
//	@Description	Agents only see donations assigned to them.
//	@Tags			Agent
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		404	{object}	httpx.Envelope
//	@Router			/agent/collection/{id} [get]
func (h *DonationHandler) HandleAgentGet(w http.ResponseWriter, r *http.Request) {
	agent, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	v, err := h.DonationService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if v.AgentID != agent.ID {
		writeServiceError(w, r, service.ErrNotFound)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", toDonationView(v))
}

// HandleAgentCollect handles GET /agent/collection/collect/{id}
//
//	@Summary		Mark an assigned donation collected
//	@Tags			Agent
//	@Security		SessionCookie
//	@Produce		json
//	@Param			id	path		string	true	"Donation ID"
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Donation}
//	@Failure		400	{object}	httpx.Envelope	"Not assigned"
//	@Failure		403	{object}	httpx.Envelope	"Assigned to another agent"
//	@Router			/agent/collection/collect/{id} [get]
func (h *DonationHandler) HandleAgentCollect(w http.ResponseWriter, r *http.Request) {
	agent, _ := userFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.DonationService.AgentCollect(r.Context(), agent, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Donation collected", toDonation(d), "/agent/collections/pending")
}
