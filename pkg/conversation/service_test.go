package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"atelier/pkg/engine"
	"atelier/pkg/generate"
	"atelier/pkg/models"
	"atelier/pkg/store"
)

func newTestService(t *testing.T) (*Service, *generate.ScriptedGenerator, *engine.Engine) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	gen := generate.NewScriptedGenerator()
	eng := engine.New(gen, 8)
	return NewService(eng), gen, eng
}

func TestProjectLifecycle(t *testing.T) {
	svc, _, eng := newTestService(t)
	defer eng.Close()

	p, err := svc.CreateProject("  demo  ")
	require.NoError(t, err)
	require.Equal(t, "demo", p.Name)
	require.NotEmpty(t, p.ID)
	require.NotZero(t, p.CreatedTS)

	got, err := svc.GetProject(p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	all, err := svc.ListProjects()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, svc.DeleteProject(p.ID))

	// soft-deleted projects vanish from the API surface
	_, err = svc.GetProject(p.ID)
	require.ErrorIs(t, err, ErrNotFound)
	all, err = svc.ListProjects()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreateProjectRejectsOversizedName(t *testing.T) {
	svc, _, eng := newTestService(t)
	defer eng.Close()

	_, err := svc.CreateProject(strings.Repeat("x", 10_000))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestSubmitPersistsUserMessageAndGeneratesReply(t *testing.T) {
	svc, gen, eng := newTestService(t)
	gen.Enqueue(generate.Reply{Text: "sure, here it is"})

	p, err := svc.CreateProject("demo")
	require.NoError(t, err)

	m, err := svc.Submit(p.ID, "build me a button")
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, m.Role)
	require.Equal(t, "build me a button", m.Content)

	// the user message is durable before generation finishes
	msgs, err := svc.List(p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	require.Equal(t, m.ID, msgs[0].ID)

	require.NoError(t, eng.Close())

	msgs, err = svc.List(p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, models.RoleAssistant, msgs[1].Role)
	require.Equal(t, "sure, here it is", msgs[1].Content)

	// the generator saw the stored conversation, not the raw request
	require.Len(t, gen.Requests, 1)
	require.Equal(t, p.ID, gen.Requests[0].ProjectID)
	require.NotEmpty(t, gen.Requests[0].History)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, eng := newTestService(t)
	defer eng.Close()

	p, err := svc.CreateProject("demo")
	require.NoError(t, err)

	_, err = svc.Submit(p.ID, "   ")
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = svc.Submit(p.ID, strings.Repeat("a", 1<<20))
	require.ErrorIs(t, err, ErrInvalid)

	// no side effects from rejected submits
	msgs, err := svc.List(p.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSubmitToUnknownProject(t *testing.T) {
	svc, _, eng := newTestService(t)
	defer eng.Close()

	_, err := svc.Submit("proj-missing", "hello")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitToDeletedProject(t *testing.T) {
	svc, _, eng := newTestService(t)
	defer eng.Close()

	p, err := svc.CreateProject("demo")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProject(p.ID))

	_, err = svc.Submit(p.ID, "hello")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListKeepsProjectsIsolated(t *testing.T) {
	svc, gen, eng := newTestService(t)
	gen.Enqueue(generate.Reply{Text: "reply one"})

	p1, err := svc.CreateProject("one")
	require.NoError(t, err)
	p2, err := svc.CreateProject("two")
	require.NoError(t, err)

	_, err = svc.Submit(p1.ID, "hello")
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	msgs, err := svc.List(p2.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
