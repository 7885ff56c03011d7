package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/export"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createProposalRequest struct {
	RFQ    model.RFQ    `json:"rfq"`
	Entity model.Entity `json:"entity"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RFQ.ID == "" || req.RFQ.Title == "" {
		respondError(w, http.StatusBadRequest, "rfq.id and rfq.title are required")
		return
	}
	if req.Entity.Name == "" {
		respondError(w, http.StatusBadRequest, "entity.name is required")
		return
	}

	run, err := s.runs.Start(r.Context(), req.RFQ, req.Entity)
	if err != nil {
		zap.L().Error("server: failed to start run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status),
	})
}

type runResponse struct {
	Run      *model.Run      `json:"run"`
	Progress *model.Progress `json:"progress,omitempty"`
	Overall  float64         `json:"overall"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}

	resp := runResponse{Run: run}
	if tracker, ok := s.runs.Tracker(runID); ok {
		snap := tracker.Snapshot()
		resp.Progress = &snap
		resp.Overall = snap.Overall()
	} else if run.Status == model.RunStatusComplete {
		resp.Overall = 1
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		RFQID:  r.URL.Query().Get("rfq_id"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: failed to list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// getDocument resolves the run's generated document or writes the
// appropriate error.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) (*model.GeneratedDocument, *model.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return nil, nil, false
	}

	doc, err := s.store.GetDocument(r.Context(), runID)
	if err != nil {
		if run.Status != model.RunStatusComplete && run.Status != model.RunStatusFailed {
			respondError(w, http.StatusConflict, "run still in progress")
			return nil, nil, false
		}
		respondError(w, http.StatusNotFound, "no document for this run")
		return nil, nil, false
	}
	return doc, run, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := s.getDocument(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocumentPDF(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := s.getDocument(w, r)
	if !ok {
		return
	}

	data, err := export.RenderPDF(doc)
	if err != nil {
		zap.L().Error("server: pdf render failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}

	filename := fmt.Sprintf("proposal-%s-v%d.pdf",
		strings.ReplaceAll(doc.Metadata.RFQID, "/", "-"), doc.Metadata.Version)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("server: failed to write pdf", zap.Error(err))
	}
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	doc, run, ok := s.getDocument(w, r)
	if !ok {
		return
	}

	email, err := export.BuildEmail(doc, run.Entity)
	if err != nil {
		zap.L().Error("server: email build failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build email")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"subject":    email.Subject,
		"body":       email.Body,
		"recipients": email.Recipients,
		"mailto":     email.MailtoLink(),
	})
}
