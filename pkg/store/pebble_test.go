package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"atelier/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	require.NoError(t, Open(t.TempDir()))
	t.Cleanup(func() { require.NoError(t, Close()) })
}

func TestProjectRoundTrip(t *testing.T) {
	openTestStore(t)

	p := models.Project{ID: "proj-1", Name: "demo", CreatedTS: time.Now().UnixNano()}
	require.NoError(t, SaveProject(p))

	got, err := GetProject("proj-1")
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name)

	_, err = GetProject("proj-missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	openTestStore(t)
	require.NoError(t, SaveProject(models.Project{ID: "p1"}))

	// identical timestamps still order by sequence
	ts := time.Now().UTC().UnixNano()
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, AppendMessage(models.Message{
			ID: id, Project: "p1", Role: models.RoleUser, Type: models.TypeResult, TS: ts,
		}))
	}

	msgs, err := ListMessages("p1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "m2", msgs[1].ID)
	require.Equal(t, "m3", msgs[2].ID)
}

func TestAppendWithFragmentIsAtomic(t *testing.T) {
	openTestStore(t)
	require.NoError(t, SaveProject(models.Project{ID: "p1"}))

	m := models.Message{
		ID: "a1", Project: "p1", Role: models.RoleAssistant, Type: models.TypeResult,
		Content: "here you go",
		Fragment: &models.Fragment{
			ID: "f1", Message: "a1", Title: "Button",
			Files: map[string]string{"app/button.tsx": "export {}"},
		},
	}
	require.NoError(t, AppendMessage(m))

	msgs, err := ListMessages("p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Fragment)
	require.Equal(t, "f1", msgs[0].Fragment.ID)

	f, err := GetFragment("f1")
	require.NoError(t, err)
	require.Equal(t, "a1", f.Message)
	require.Equal(t, "export {}", f.Files["app/button.tsx"])
}

func TestAppendBumpsProjectActivity(t *testing.T) {
	openTestStore(t)
	require.NoError(t, SaveProject(models.Project{ID: "p1", CreatedTS: 100, UpdatedTS: 100}))

	require.NoError(t, AppendMessage(models.Message{
		ID: "m1", Project: "p1", Role: models.RoleUser, Type: models.TypeResult, TS: 500,
	}))

	p, err := GetProject("p1")
	require.NoError(t, err)
	require.EqualValues(t, 500, p.UpdatedTS)
}

func TestListMessagesScopedToProject(t *testing.T) {
	openTestStore(t)
	require.NoError(t, SaveProject(models.Project{ID: "p1"}))
	require.NoError(t, SaveProject(models.Project{ID: "p2"}))

	require.NoError(t, AppendMessage(models.Message{ID: "m1", Project: "p1", Role: models.RoleUser, Type: models.TypeResult}))
	require.NoError(t, AppendMessage(models.Message{ID: "m2", Project: "p2", Role: models.RoleUser, Type: models.TypeResult}))

	msgs, err := ListMessages("p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
}

func TestSoftDeleteThenPurge(t *testing.T) {
	openTestStore(t)
	require.NoError(t, SaveProject(models.Project{ID: "p1", Name: "demo"}))
	require.NoError(t, AppendMessage(models.Message{
		ID: "a1", Project: "p1", Role: models.RoleAssistant, Type: models.TypeResult,
		Fragment: &models.Fragment{ID: "f1", Message: "a1"},
	}))

	require.NoError(t, SoftDeleteProject("p1"))
	p, err := GetProject("p1")
	require.NoError(t, err)
	require.True(t, p.Deleted)
	require.NotZero(t, p.DeletedTS)

	// timeline survives soft delete
	msgs, err := ListMessages("p1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, PurgeProject("p1"))
	_, err = GetProject("p1")
	require.ErrorIs(t, err, ErrNotFound)
	msgs, err = ListMessages("p1")
	require.NoError(t, err)
	require.Empty(t, msgs)
	_, err = GetFragment("f1")
	require.ErrorIs(t, err, ErrNotFound)
}
