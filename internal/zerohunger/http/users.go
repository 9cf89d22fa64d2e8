package http

import (
	"net/http"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

type UserHandler struct {
	UserService      *service.UserService
	DashboardService *service.DashboardService
}

// HandleDashboard handles GET /dashboard
//
//	@Summary		Role dashboard
//	@Description	Counters for the caller's role. Admins see users per role and donations per status.
//	@Tags			Users
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=zhclient.Dashboard}
//	@Failure		401	{object}	httpx.Envelope
//	@Router			/dashboard [get]
func (h *UserHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	d, err := h.DashboardService.Counts(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Hand over the flash left by the redirect that landed here.
	_, msg := httpx.PopFlash(w, r)
	httpx.WriteOK(w, http.StatusOK, msg, toDashboard(d))
}

// HandleUpdateProfile handles PUT /profile
//
//	@Summary		Update profile
//	@Description	Role and email cannot be changed.
//	@Tags			Users
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.ProfileRequest	true	"Profile"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.User}
//	@Failure		400		{object}	httpx.Envelope	"Validation failed"
//	@Router			/profile [put]
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req zhclient.ProfileRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	u, err := h.UserService.UpdateProfile(r.Context(), user, service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Address:   req.Address,
		Phone:     req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Profile updated", toUser(u), "/dashboard")
}

// HandleListAgents handles GET /admin/agents
//
//	@Summary		List agents
//	@Description	Candidates for donation assignment.
//	@Tags			Admin
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.UserSummary}
//	@Failure		403	{object}	httpx.Envelope
//	@Router			/admin/agents [get]
func (h *UserHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.UserService.ListAgents(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]zhclient.UserSummary, 0, len(agents))
	for i := range agents {
		out = append(out, *toSummary(&agents[i]))
	}
	httpx.WriteOK(w, http.StatusOK, "", out)
}
