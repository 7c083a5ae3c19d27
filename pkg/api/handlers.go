package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/harun/browserd/internal/tracing"
	"github.com/harun/browserd/pkg/automation"
	"github.com/harun/browserd/pkg/browser"
	"github.com/harun/browserd/pkg/profile"
	"github.com/harun/browserd/pkg/session"
)

type createRequest struct {
	Email     any               `json:"email"`
	UserAgent string            `json:"userAgent"`
	Viewport  *browser.Viewport `json:"viewport"`
}

type gotoRequest struct {
	URL     any                        `json:"url"`
	Options automation.NavigateOptions `json:"options"`
}

type actionRequest struct {
	Selector string                   `json:"selector"`
	Text     *string                  `json:"text"`
	Options  automation.ActionOptions `json:"options"`
}

type evalRequest struct {
	Script any `json:"script"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err as a 500 carrying its message and code
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := browser.CodeOf(err)
	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	logger.Debug().
		Err(err).
		Str("code", code).
		Str("path", r.URL.Path).
		Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: code})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, browser.InvalidArgument("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, browser.InvalidArgument("failed to read request body: %v", err)
	}
	return body, nil
}

// readRequest reads the body and decodes it through v into dst
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request, v *validator, fallback string, dst any) error {
	body, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	return decode(v, body, fallback, dst)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"uptime":   int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createRequest
	if err := decode(createValidator, body, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if isFalsy(req.Email) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email is required"})
		return
	}
	email, isString := req.Email.(string)
	if !isString {
		s.writeError(w, r, browser.InvalidArgument("email is required and must be a string"))
		return
	}

	id, err := s.sessions.Create(r.Context(), session.CreateRequest{
		Email:     email,
		UserAgent: req.UserAgent,
		Viewport:  req.Viewport,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

// isFalsy matches the values a JSON client would consider "missing"
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.sessions.Close(r.Context(), sessionID(r))
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := s.readRequest(w, r, gotoValidator, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.automation.Navigate(r.Context(), sessionID(r), req.URL, req.Options); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.automation.Content(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	fullPage := true
	if raw := r.URL.Query().Get("fullPage"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, browser.InvalidArgument("fullPage must be true or false"))
			return
		}
		fullPage = v
	}

	img, err := s.automation.Screenshot(r.Context(), sessionID(r), automation.ScreenshotOptions{FullPage: fullPage})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := s.readRequest(w, r, actionValidator, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.automation.Click(r.Context(), sessionID(r), req.Selector, req.Options); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := s.readRequest(w, r, actionValidator, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Selector != "" && req.Text == nil {
		s.writeError(w, r, browser.InvalidArgument("Text is required for type"))
		return
	}

	var text string
	if req.Text != nil {
		text = *req.Text
	}
	if err := s.automation.Type(r.Context(), sessionID(r), req.Selector, text, req.Options); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := s.readRequest(w, r, actionValidator, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	text, err := s.automation.Text(r.Context(), sessionID(r), req.Selector)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := s.readRequest(w, r, objectValidator, "{}", &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.automation.Evaluate(r.Context(), sessionID(r), req.Script)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	var headers map[string]string
	if err := s.readRequest(w, r, headersValidator, "{}", &headers); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.automation.SetHeaders(r.Context(), sessionID(r), headers); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleGetCookies(w http.ResponseWriter, r *http.Request) {
	cookies, err := s.automation.Cookies(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cookies": cookies})
}

func (s *Server) handleSetCookies(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := s.readRequest(w, r, cookiesValidator, "[]", &raw); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.automation.SetCookies(r.Context(), sessionID(r), raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := s.automation.Back(r.Context(), sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	if err := s.automation.Forward(r.Context(), sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.automation.Reload(r.Context(), sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

// handleListProfiles answers from the catalog when one is configured and
// from the profile directories otherwise.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if s.options.Catalog != nil {
		entries, err := s.options.Catalog.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if entries == nil {
			entries = []profile.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": entries})
		return
	}

	entries := []profile.Entry{}
	if s.options.Profiles != nil {
		ids, err := s.options.Profiles.List()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for _, id := range ids {
			entries = append(entries, profile.Entry{ID: id})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": entries})
}
