package handlers

import (
	"errors"
	"net/http"

	"water-grid-monitoring-system/api/internal/ledger"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/api/internal/repos"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/metricsx"
	"water-grid-monitoring-system/shared/workflow"
)

type reportRequest struct {
	Type        string `json:"type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Type == "" || req.Location == "" || req.Description == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "type, location and description are required", nil)
		return
	}

	report, err := s.Reports.Append(r.Context(), models.CitizenReport{
		Type:        req.Type,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, r, err, "report not found")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, report)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	status := workflow.NormalizeStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	reports, err := s.Reports.List(r.Context(), status, limit, offset)
	if err != nil {
		writeStoreError(w, r, err, "reports not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	report, err := s.Reports.GetByID(r.Context(), reportID)
	if err != nil {
		writeStoreError(w, r, err, "report not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

type reportStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateReportStatus(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reportStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	toStatus := workflow.NormalizeStatus(req.Status)
	if toStatus == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "status is required", nil)
		return
	}

	report, changed, err := s.Reports.TransitionStatus(r.Context(), reportID, toStatus, workflow.CanTransitionReport, workflow.ReportEventForTransition)
	if err != nil {
		if errors.Is(err, repos.ErrInvalidReportTransition) {
			httpx.WriteError(w, r, http.StatusConflict, "INVALID_TRANSITION", "report cannot move to "+toStatus, map[string]any{"from": report.Status, "to": toStatus})
			return
		}
		writeStoreError(w, r, err, "report not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"report": report, "changed": changed})
}

func (s *Server) verifyChain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.Reports.ListChain(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "reports not found")
		return
	}

	verification := ledger.VerifyChain(chain)
	metricsx.SetChainLength(int64(len(chain)))
	if !verification.Valid {
		metricsx.IncChainVerifyFailure()
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":          verification.Valid,
		"blocks_checked": verification.BlocksChecked,
		"invalid_block":  verification.InvalidBlock,
		"verified_at":    s.now(),
	})
}

func (s *Server) chainStats(w http.ResponseWriter, r *http.Request) {
	chain, err := s.Reports.ListChain(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "reports not found")
		return
	}
	stats := ledger.ChainStats(chain)
	metricsx.SetChainLength(int64(stats.TotalBlocks))
	if !stats.Valid {
		metricsx.IncChainVerifyFailure()
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
