package web

import (
	"net/http"

	"github.com/conorfennell/knolarchive/internal/importer"
	"github.com/conorfennell/knolarchive/internal/storage"
)

type reportDTO struct {
	SourceID int64    `json:"sourceId"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Orphaned int      `json:"orphaned"`
	Errors   []string `json:"errors"`
}

func toReportDTO(r importer.Report) reportDTO {
	out := reportDTO{
		SourceID: r.SourceID,
		Path:     r.Path,
		Parsed:   r.Parsed,
		Created:  r.Created,
		Skipped:  r.Skipped,
		Orphaned: r.Orphaned,
		Errors:   make([]string, 0, len(r.Errors)),
	}
	for _, err := range r.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

// handleGetSources lists the import sources. Sources are shared
// configuration, so only admins may read or change them.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireAdmin(r, "list sources"); err != nil {
			s.writeError(w, r, err)
			return
		}
		sources, err := s.sources.GetAllSources(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if sources == nil {
			sources = []storage.Source{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

// handlePostSource registers a new source owned by the caller unless an
// owner is given.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireAdmin(r, "add sources"); err != nil {
			s.writeError(w, r, err)
			return
		}
		var req struct {
			Path    string `json:"path"`
			OwnerID string `json:"ownerId"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Path == "" {
			s.writeError(w, r, fieldRequired("path"))
			return
		}
		if req.OwnerID == "" {
			req.OwnerID = actor(r).UserID
		}
		source, err := s.importer.AddSource(r.Context(), req.Path, req.OwnerID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, source)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireAdmin(r, "delete sources"); err != nil {
			s.writeError(w, r, err)
			return
		}
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.sources.DeleteSource(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs an import in the foreground and returns its reports.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireAdmin(r, "run imports"); err != nil {
			s.writeError(w, r, err)
			return
		}
		reports, err := s.importer.Run(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]reportDTO, 0, len(reports))
		for _, rep := range reports {
			out = append(out, toReportDTO(rep))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
