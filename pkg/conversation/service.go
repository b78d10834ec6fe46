package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"atelier/pkg/engine"
	"atelier/pkg/logger"
	"atelier/pkg/models"
	"atelier/pkg/store"
	"atelier/pkg/utils"
	"atelier/pkg/validation"
)

var (
	// ErrEmptyText rejects a submit before any side effect.
	ErrEmptyText = errors.New("message text is empty")
	// ErrInvalid wraps input-validation failures.
	ErrInvalid = errors.New("invalid input")
	// ErrNotFound mirrors the store's not-found for unknown projects.
	ErrNotFound = store.ErrNotFound
)

// Service is the contract boundary for conversations: it accepts new user
// messages (triggering the generation engine) and exposes ordered message
// retrieval. Submit returns once the user message is durably stored, not
// once generation completes.
type Service struct {
	eng *engine.Engine
}

// NewService wires the service to a running engine.
func NewService(eng *engine.Engine) *Service {
	return &Service{eng: eng}
}

// CreateProject creates a new workspace.
func (s *Service) CreateProject(name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if err := validation.ProjectName(name); err != nil {
		return models.Project{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	p := models.Project{
		ID:        utils.GenProjectID(),
		Name:      name,
		CreatedTS: time.Now().UTC().UnixNano(),
	}
	p.UpdatedTS = p.CreatedTS
	if err := store.SaveProject(p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetProject returns a live project or ErrNotFound. Soft-deleted projects
// are reported as missing.
func (s *Service) GetProject(projectID string) (models.Project, error) {
	p, err := store.GetProject(projectID)
	if err != nil {
		return models.Project{}, err
	}
	if p.Deleted {
		return models.Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return p, nil
}

// ListProjects returns all live projects.
func (s *Service) ListProjects() ([]models.Project, error) {
	all, err := store.ListProjects()
	if err != nil {
		return nil, err
	}
	out := make([]models.Project, 0, len(all))
	for _, p := range all {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

// DeleteProject soft-deletes a project; the retention runner purges it
// later.
func (s *Service) DeleteProject(projectID string) error {
	if _, err := s.GetProject(projectID); err != nil {
		return err
	}
	return store.SoftDeleteProject(projectID)
}

// Submit validates and persists a USER message, then hands the turn to the
// engine. Exactly one engine invocation happens per successful submit; a
// concurrent submit for the same project is queued behind the running one,
// never rejected for being concurrent.
func (s *Service) Submit(projectID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyText
	}
	if err := validation.MessageText(text); err != nil {
		return models.Message{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	if _, err := s.GetProject(projectID); err != nil {
		return models.Message{}, err
	}

	m := models.Message{
		ID:      utils.GenMessageID(),
		Project: projectID,
		Role:    models.RoleUser,
		Type:    models.TypeResult,
		Content: text,
		TS:      time.Now().UTC().UnixNano(),
	}
	if err := store.AppendMessage(m); err != nil {
		return models.Message{}, err
	}
	if err := s.eng.Submit(projectID, m.ID, text); err != nil {
		// the user message is already durable; surface the backpressure
		logger.Log.Error("submit_enqueue_failed",
			zap.String("project", projectID), zap.Error(err))
		return m, err
	}
	return m, nil
}

// List returns the project's full ordered timeline with fragments inlined.
func (s *Service) List(projectID string) ([]models.Message, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	return store.ListMessages(projectID)
}
