package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/metrics"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Only reachable behind the admin session gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type LocationHandler struct {
	LocationService *service.LocationService
	PushInterval    time.Duration
}

// HandleUpdate handles POST /update-location
//
//	@Summary		Report the caller's position
//	@Tags			Locations
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.LocationRequest	true	"Coordinates"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.Location}
//	@Failure		400		{object}	httpx.Envelope	"Coordinates out of range"
//	@Failure		403		{object}	httpx.Envelope	"Not an agent"
//	@Router			/update-location [post]
func (h *LocationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	agent, _ := userFromContext(r.Context())

	var req zhclient.LocationRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	loc, err := h.LocationService.Record(r.Context(), agent, req.Latitude, req.Longitude)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "Location updated", toLocation(loc))
}

// HandleGet handles GET /location/{agentId}
//
//	@Summary		Last known position of an agent
//	@Tags			Locations
//	@Security		SessionCookie
//	@Produce		json
//	@Param			agentId	path		string	true	"Agent ID"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.Location}
//	@Failure		404		{object}	httpx.Envelope
//	@Router			/location/{agentId} [get]
func (h *LocationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(w, r, "agentId")
	if !ok {
		return
	}

	loc, err := h.LocationService.Get(r.Context(), agentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", toLocation(loc))
}

// HandleList handles GET /locations
//
//	@Summary		Every known agent position
//	@Tags			Locations
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=[]zhclient.Location}
//	@Router			/locations [get]
func (h *LocationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	locs, err := h.LocationService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, "", toLocations(locs))
}

// HandleStream handles GET /ws/locations
//
//	@Summary		Live agent positions
//	@Description	Upgrades to a websocket and pushes the full position list on connect and then periodically.
//	@Tags			Locations
//	@Security		SessionCookie
//	@Success		101	{string}	string	"Switching Protocols"
//	@Failure		403	{object}	httpx.Envelope
//	@Router			/ws/locations [get]
func (h *LocationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	metrics.LocationSubscribers.Inc()
	defer metrics.LocationSubscribers.Dec()

	// The request context ends with the handler; the push loop follows the
	// connection instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go h.readPump(conn, cancel)
	h.pushLoop(ctx, conn)
	log.Debug("location feed closed")
}

// readPump discards client frames and cancels the feed when the peer goes
// away or stops answering pings.
func (h *LocationHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LocationHandler) pushLoop(ctx context.Context, conn *websocket.Conn) {
	interval := h.PushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := h.push(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case <-push.C:
			if err := h.push(ctx, conn); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *LocationHandler) push(ctx context.Context, conn *websocket.Conn) error {
	locs, err := h.LocationService.List(ctx)
	if err != nil {
		// A failed read skips one push; the socket stays open.
		slogx.FromContext(ctx).Warn("failed to list locations", "err", err)
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(toLocations(locs))
}
