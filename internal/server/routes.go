package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/services/eventsync"
)

const communitiesPrefix = "/api/communities/"

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc(communitiesPrefix, s.routeCommunity)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, common.CurrentBuild())
}

type statusResponse struct {
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Market      string `json:"market,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	resp := statusResponse{
		Environment: s.app.Config.Environment,
		Uptime:      time.Since(s.app.StartupTime).Round(time.Second).String(),
	}
	if s.app.MarketStatusService != nil {
		resp.Market = s.app.MarketStatusService.Status(time.Now())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSync runs a batch pass inline and returns its summary. With
// ?async=true the scheduler job is triggered instead and 202 is returned.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if s.app.Scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "scheduler not configured")
			return
		}
		if err := s.app.Scheduler.RunNow(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	summary, err := s.app.SyncService.RunDailySync(r.Context())
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync_in_progress", err.Error())
	case err != nil && summary == nil:
		s.writeServiceError(w, r, err)
	default:
		// a cancelled pass still reports what it did
		writeJSON(w, http.StatusOK, summary)
	}
}

// routeCommunity dispatches:
//
//	GET    /api/communities/{id}/tickers
//	POST   /api/communities/{id}/tickers
//	DELETE /api/communities/{id}/tickers/{ticker}
//	POST   /api/communities/{id}/purge
func (s *Server) routeCommunity(w http.ResponseWriter, r *http.Request) {
	community, rest, ok := communityPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	switch {
	case len(rest) == 1 && rest[0] == "tickers":
		if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
			return
		}
		if r.Method == http.MethodGet {
			s.handleTickerList(w, r, community)
		} else {
			s.handleTickerAdd(w, r, community)
		}
	case len(rest) == 2 && rest[0] == "tickers":
		if allowMethods(w, r, http.MethodDelete) {
			s.handleTickerRemove(w, r, community, rest[1])
		}
	case len(rest) == 1 && rest[0] == "purge":
		if allowMethods(w, r, http.MethodPost) {
			s.handlePurge(w, r, community)
		}
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

type tickerListResponse struct {
	Community string   `json:"community"`
	Tickers   []string `json:"tickers"`
}

func (s *Server) handleTickerList(w http.ResponseWriter, r *http.Request, community string) {
	tickers, err := s.app.SyncService.ListTickers(r.Context(), community)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickerListResponse{Community: community, Tickers: tickers})
}

type addTickerRequest struct {
	Ticker string `json:"ticker"`
}

func (s *Server) handleTickerAdd(w http.ResponseWriter, r *http.Request, community string) {
	var req addTickerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	change, err := s.app.SyncService.OnTickerAdded(r.Context(), community, req.Ticker)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if change.Changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, change)
}

func (s *Server) handleTickerRemove(w http.ResponseWriter, r *http.Request, community, ticker string) {
	change, err := s.app.SyncService.OnTickerRemoved(r.Context(), community, ticker)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !change.Changed {
		status = http.StatusNotFound
	}
	writeJSON(w, status, change)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request, community string) {
	result, err := s.app.SyncService.PurgeAllPublishedEvents(r.Context(), community)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps domain errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case eventsync.IsUserError(err):
		if errors.Is(err, common.ErrInvalidTicker) {
			writeError(w, http.StatusBadRequest, "invalid_ticker", err.Error())
			return
		}
		writeError(w, http.StatusNotFound, "community_unresolvable", err.Error())
	case errors.Is(err, common.ErrEventPublishRejected), errors.Is(err, common.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_failed", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Operator request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
