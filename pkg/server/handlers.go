package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"irondiscipline/warden/pkg/containment"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// ConfineRequest is the body of POST /v1/confinements.
type ConfineRequest struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	InitiatorID string `json:"initiator_id,omitempty"`
	Reason      string `json:"reason"`
}

// EventRequest is the body of POST /v1/events. It lets a host forward
// session and action events of its players.
type EventRequest struct {
	// Type is one of "join", "leave", "move", "action".
	Type      string `json:"type"`
	SubjectID string `json:"subject_id"`

	// Name is the display name of a joining subject.
	Name string `json:"name,omitempty"`

	// Location is the subject's position for join and move, in
	// "world;x;y;z;yaw;pitch" form.
	Location string `json:"location,omitempty"`

	// Action is the action asked about by an action event.
	Action string `json:"action,omitempty"`
}

// ResultResponse reports the outcome of a command or event.
type ResultResponse struct {
	Accepted   bool `json:"accepted"`
	Teleported bool `json:"teleported,omitempty"`
}

// ListResponse is the body of GET /v1/confinements.
type ListResponse struct {
	Confinements []store.Detail `json:"confinements"`
	Count        int            `json:"count"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details := make([]store.Detail, 0)
	for _, id := range s.deps.Controller.Confined() {
		d, ok, err := s.deps.Controller.Detail(ctx, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if ok {
			details = append(details, d)
		}
	}
	sort.Slice(details, func(i, j int) bool {
		return details[i].ConfinedAt.Before(details[j].ConfinedAt)
	})

	writeJSON(w, http.StatusOK, ListResponse{Confinements: details, Count: len(details)})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	d, found, err := s.deps.Controller.Detail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "subject not confined"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleConfine(w http.ResponseWriter, r *http.Request) {
	var req ConfineRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := subject.ParseID(req.SubjectID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid subject_id"})
		return
	}
	var initiator *subject.ID
	if req.InitiatorID != "" {
		by, err := subject.ParseID(req.InitiatorID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid initiator_id"})
			return
		}
		initiator = &by
	}

	res, err := s.deps.Dispatcher.Dispatch(r.Context(), containment.ConfineOfflineCommand{
		SubjectID:   id,
		DisplayName: req.DisplayName,
		Initiator:   initiator,
		Reason:      req.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ResultResponse{Accepted: res.Accepted})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Dispatcher.Dispatch(r.Context(), containment.ReleaseCommand{SubjectID: id})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Accepted: res.Accepted})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.Online())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !s.decode(w, r, &req) {
		return
	}

	ev, err := s.toEvent(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.deps.Dispatcher.Dispatch(r.Context(), ev)
	if leave, ok := ev.(containment.LeaveEvent); ok {
		s.deps.Sessions.Leave(leave.SubjectID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultResponse{Accepted: res.Accepted, Teleported: res.Teleported})
}

// toEvent translates a forwarded event. Join registers a live session and
// move updates its location before the controller sees the event.
func (s *Server) toEvent(req EventRequest) (containment.Event, error) {
	id, err := subject.ParseID(req.SubjectID)
	if err != nil {
		return nil, errors.New("invalid subject_id")
	}

	switch req.Type {
	case "join":
		loc, err := subject.ParseLocation(req.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid location: %w", err)
		}
		p := session.NewLivePlayer(id, req.Name, loc)
		s.deps.Sessions.Join(p)
		return containment.JoinEvent{Player: p}, nil

	case "leave":
		return containment.LeaveEvent{SubjectID: id}, nil

	case "move":
		loc, err := subject.ParseLocation(req.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid location: %w", err)
		}
		if p, ok := s.deps.Sessions.Get(id); ok {
			if lp, ok := p.(*session.LivePlayer); ok {
				lp.SetLocation(loc)
			}
		}
		return containment.MoveEvent{SubjectID: id, To: loc}, nil

	case "action":
		if req.Action == "" {
			return nil, errors.New("action is required")
		}
		return containment.ActionEvent{SubjectID: id, Action: containment.Action(req.Action)}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", req.Type)
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (subject.ID, bool) {
	id, err := subject.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid subject id"})
		return subject.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.logger.WarnContext(r.Context(), "invalid request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps controller errors to status codes. Rejections are
// conflicts; persistence failures are reported as unavailable.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, containment.ErrNotConfined):
		code = http.StatusNotFound
	case errors.Is(err, containment.ErrAlreadyConfined),
		errors.Is(err, containment.ErrInFlight),
		errors.Is(err, containment.ErrSubjectOffline):
		code = http.StatusConflict
	case errors.Is(err, containment.ErrLocationNotConfigured),
		errors.Is(err, containment.ErrPersistence),
		errors.Is(err, store.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, containment.ErrUnknownEvent):
		code = http.StatusBadRequest
	}

	if code >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
