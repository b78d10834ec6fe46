package generate

import (
	"context"

	"atelier/pkg/models"
)

// Request carries everything the generation capability needs for one turn:
// the project and the ordered conversation so far (the newest USER message
// is the last element).
type Request struct {
	ProjectID string
	History   []models.Message
}

// Artifact is the optional generated bundle for a turn.
type Artifact struct {
	Title      string
	Files      map[string]string
	SandboxURL string
}

// Reply is the terminal result of a successful generation.
type Reply struct {
	Text     string
	Artifact *Artifact
}

// Generator is the opaque generation capability invoked by the engine. A
// returned error becomes an error-typed assistant message; it never crosses
// the transport boundary.
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
