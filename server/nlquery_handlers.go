package server

import (
	"net/http"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/nlquery"
)

type questionRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type converseResponse struct {
	*nlquery.Answer
	SessionID string `json:"session_id"`
}

func (s *FINQServer) engine() (nlquery.Answerer, error) {
	if s.deps.Engine == nil {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrServiceUnavailable, "natural-language queries are not configured"),
			"set openrouter.api_key or enable local_inference")
	}
	return s.deps.Engine, nil
}

// HandleNLQuery answers a single question without history
func (s *FINQServer) HandleNLQuery(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engine()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req questionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ans, err := engine.Answer(r.Context(), req.Question, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, ans)
}

// HandleNLConverse answers a question within a session. A missing, unknown
// or expired session id starts a new session; the response carries its id.
func (s *FINQServer) HandleNLConverse(w http.ResponseWriter, r *http.Request) {
	engine, err := s.engine()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req questionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session := s.deps.Sessions.GetOrNew(req.SessionID)
	ctx := logger.WithSessionID(r.Context(), session.ID)

	ans, err := session.Ask(ctx, engine, req.Question)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	_ = writeJSON(w, http.StatusOK, converseResponse{Answer: ans, SessionID: session.ID})
}
