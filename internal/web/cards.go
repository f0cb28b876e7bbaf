package web

import (
	"encoding/json"
	"net/http"

	"github.com/conorfennell/knolarchive/internal/cards"
	"github.com/conorfennell/knolarchive/internal/content"
	"github.com/conorfennell/knolarchive/internal/deckquery"
	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

type createFailureDTO struct {
	Index int               `json:"index"`
	Item  cards.CreateInput `json:"item"`
	Error errorBody         `json:"error"`
}

type batchCreateDTO struct {
	Created      []domain.Card      `json:"created"`
	Failed       []createFailureDTO `json:"failed"`
	Total        int                `json:"total"`
	SuccessCount int                `json:"successCount"`
	FailureCount int                `json:"failureCount"`
}

type stateFailureDTO struct {
	Index int       `json:"index"`
	ID    string    `json:"id"`
	Error errorBody `json:"error"`
}

type batchStateDTO struct {
	Succeeded    []domain.Card     `json:"succeeded"`
	Failed       []stateFailureDTO `json:"failed"`
	Total        int               `json:"total"`
	SuccessCount int               `json:"successCount"`
	FailureCount int               `json:"failureCount"`
}

type countDTO struct {
	Count int `json:"count"`
}

func (s *Server) handleListCardTypes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, content.Describe())
	}
}

func (s *Server) handleGetCardType() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("type")
		schema, ok := content.Lookup(domain.CardType(name))
		if !ok {
			s.writeError(w, r, apperrors.Field("cardType", "unknown card type %q", name))
			return
		}
		writeJSON(w, http.StatusOK, schema)
	}
}

// handleValidateContent runs the dispatcher without storing anything and
// returns the canonical content.
func (s *Server) handleValidateContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := decode(w, r, &raw); err != nil {
			s.writeError(w, r, err)
			return
		}
		_, canonical, err := content.Normalize(r.PathValue("type"), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]json.RawMessage{"content": canonical})
	}
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in cards.CreateInput
		if err := decode(w, r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.cards.Create(r.Context(), actor(r), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleBatchCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []cards.CreateInput `json:"items"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.cards.BatchCreate(r.Context(), actor(r), req.Items)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := batchCreateDTO{
			Created:      res.Created,
			Failed:       make([]createFailureDTO, 0, len(res.Failed)),
			Total:        res.Total,
			SuccessCount: res.SuccessCount,
			FailureCount: res.FailureCount,
		}
		for _, f := range res.Failed {
			out.Failed = append(out.Failed, createFailureDTO{Index: f.Index, Item: f.Item, Error: toErrorBody(f.Err)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleBatchState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To    domain.State        `json:"to"`
			Items []cards.StateChange `json:"items"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.cards.BatchChangeState(r.Context(), actor(r), req.Items, req.To)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := batchStateDTO{
			Succeeded:    res.Succeeded,
			Failed:       make([]stateFailureDTO, 0, len(res.Failed)),
			Total:        res.Total,
			SuccessCount: res.SuccessCount,
			FailureCount: res.FailureCount,
		}
		for _, f := range res.Failed {
			out.Failed = append(out.Failed, stateFailureDTO{Index: f.Index, ID: f.ID, Error: toErrorBody(f.Err)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q deckquery.Query
		if err := decode(w, r, &q); err != nil {
			s.writeError(w, r, err)
			return
		}
		page, err := s.cards.Query(r.Context(), actor(r), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q deckquery.Query
		if err := decode(w, r, &q); err != nil {
			s.writeError(w, r, err)
			return
		}
		n, err := s.cards.Count(r.Context(), actor(r), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countDTO{Count: n})
	}
}

// handleGetCard serves ?includeDeleted=true for admin audits.
func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeDeleted, err := boolParam(r, "includeDeleted")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		card, err := s.cards.Get(r.Context(), actor(r), r.PathValue("id"), includeDeleted)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleUpdateContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version int64 `json:"version"`
			cards.UpdateContentInput
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.UpdateContent(r.Context(), actor(r), r.PathValue("id"), req.Version, req.UpdateContentInput))
	}
}

func (s *Server) handleUpdateTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version int64    `json:"version"`
			Tags    []string `json:"tags"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.UpdateTags(r.Context(), actor(r), r.PathValue("id"), req.Version, req.Tags))
	}
}

func (s *Server) handleUpdateLinks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version          int64    `json:"version"`
			KnowledgeNodeIDs []string `json:"knowledgeNodeIds"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.UpdateKnowledgeLinks(r.Context(), actor(r), r.PathValue("id"), req.Version, req.KnowledgeNodeIDs))
	}
}

func (s *Server) handleChangeState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version int64        `json:"version"`
			State   domain.State `json:"state"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.ChangeState(r.Context(), actor(r), r.PathValue("id"), req.Version, req.State))
	}
}

func (s *Server) handleSoftDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := versionParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.SoftDelete(r.Context(), actor(r), r.PathValue("id"), version))
	}
}

func (s *Server) handleRestore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version int64 `json:"version"`
		}
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondCard(w, r)(s.cards.Restore(r.Context(), actor(r), r.PathValue("id"), req.Version))
	}
}

func (s *Server) handleHardDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := versionParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.cards.HardDelete(r.Context(), actor(r), r.PathValue("id"), version); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// respondCard writes the result of a single-card mutation.
func (s *Server) respondCard(w http.ResponseWriter, r *http.Request) func(domain.Card, error) {
	return func(card domain.Card, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}
