package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"atelier/pkg/conversation"
	"atelier/pkg/engine"
	"atelier/pkg/models"
	"atelier/pkg/utils"
)

type server struct {
	svc *conversation.Service
}

// --- /v1/projects ---

func (s *server) createProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := s.svc.CreateProject(body.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, p)
}

func (s *server) listProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.svc.ListProjects()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ps == nil {
		ps = []models.Project{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Projects []models.Project `json:"projects"`
	}{Projects: ps})
}

func (s *server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProject(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func (s *server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- /v1/projects/{id}/messages ---

func (s *server) submitMessage(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := s.svc.Submit(projectID, body.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// accepted: the user message is durable, generation completes async
	_ = utils.JSONWrite(w, http.StatusAccepted, m)
}

func (s *server) listMessages(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	msgs, err := s.svc.List(projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// limit keeps the newest N messages; zero or negative means no limit
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim > 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Project  string           `json:"project"`
		Messages []models.Message `json:"messages"`
	}{Project: projectID, Messages: msgs})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrEmptyText), errors.Is(err, conversation.ErrInvalid):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrClosed):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
