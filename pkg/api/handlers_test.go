package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"atelier/pkg/conversation"
	"atelier/pkg/engine"
	"atelier/pkg/generate"
	"atelier/pkg/models"
	"atelier/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *generate.ScriptedGenerator, *engine.Engine) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	gen := generate.NewScriptedGenerator()
	eng := engine.New(gen, 8)
	srv := httptest.NewServer(NewRouter(conversation.NewService(eng)))
	t.Cleanup(srv.Close)
	return srv, gen, eng
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return res
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	srv, _, eng := newTestServer(t)
	defer eng.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProjectEndpoints(t *testing.T) {
	srv, _, eng := newTestServer(t)
	defer eng.Close()

	res := postJSON(t, srv.URL+"/v1/projects", map[string]string{"name": "demo"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	p := decodeBody[models.Project](t, res)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "demo", p.Name)

	res, err := http.Get(srv.URL + "/v1/projects")
	require.NoError(t, err)
	list := decodeBody[struct {
		Projects []models.Project `json:"projects"`
	}](t, res)
	require.Len(t, list.Projects, 1)

	res, err = http.Get(srv.URL + "/v1/projects/" + p.ID)
	require.NoError(t, err)
	got := decodeBody[models.Project](t, res)
	require.Equal(t, p.ID, got.ID)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/projects/"+p.ID, nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = http.Get(srv.URL + "/v1/projects/" + p.ID)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCreateProjectRejectsBadJSON(t *testing.T) {
	srv, _, eng := newTestServer(t)
	defer eng.Close()

	res, err := http.Post(srv.URL+"/v1/projects", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSubmitAndListMessages(t *testing.T) {
	srv, gen, eng := newTestServer(t)
	gen.Enqueue(generate.Reply{Text: "done", Artifact: &generate.Artifact{
		Title: "Button", Files: map[string]string{"app/button.tsx": "export {}"},
	}})

	res := postJSON(t, srv.URL+"/v1/projects", map[string]string{"name": "demo"})
	p := decodeBody[models.Project](t, res)

	res = postJSON(t, srv.URL+"/v1/projects/"+p.ID+"/messages", map[string]string{"text": "build a button"})
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	m := decodeBody[models.Message](t, res)
	require.Equal(t, models.RoleUser, m.Role)

	// drain the engine so the reply is visible
	require.NoError(t, eng.Close())

	res, err := http.Get(srv.URL + "/v1/projects/" + p.ID + "/messages")
	require.NoError(t, err)
	body := decodeBody[struct {
		Project  string           `json:"project"`
		Messages []models.Message `json:"messages"`
	}](t, res)
	require.Equal(t, p.ID, body.Project)
	require.Len(t, body.Messages, 2)
	require.Equal(t, models.RoleAssistant, body.Messages[1].Role)
	require.NotNil(t, body.Messages[1].Fragment)
	require.Equal(t, "Button", body.Messages[1].Fragment.Title)
}

func TestListMessagesLimitKeepsTail(t *testing.T) {
	srv, gen, eng := newTestServer(t)
	gen.Enqueue(generate.Reply{Text: "r1"})
	gen.Enqueue(generate.Reply{Text: "r2"})

	res := postJSON(t, srv.URL+"/v1/projects", map[string]string{"name": "demo"})
	p := decodeBody[models.Project](t, res)

	postJSON(t, srv.URL+"/v1/projects/"+p.ID+"/messages", map[string]string{"text": "one"}).Body.Close()
	postJSON(t, srv.URL+"/v1/projects/"+p.ID+"/messages", map[string]string{"text": "two"}).Body.Close()
	require.NoError(t, eng.Close())

	res, err := http.Get(srv.URL + "/v1/projects/" + p.ID + "/messages?limit=2")
	require.NoError(t, err)
	body := decodeBody[struct {
		Messages []models.Message `json:"messages"`
	}](t, res)
	require.Len(t, body.Messages, 2)
	// the tail, not the head
	require.Equal(t, models.RoleAssistant, body.Messages[1].Role)

	// limit=0 means no limit, not an empty list
	res, err = http.Get(srv.URL + "/v1/projects/" + p.ID + "/messages?limit=0")
	require.NoError(t, err)
	full := decodeBody[struct {
		Messages []models.Message `json:"messages"`
	}](t, res)
	require.Len(t, full.Messages, 4)
}

func TestSubmitErrors(t *testing.T) {
	srv, _, eng := newTestServer(t)
	defer eng.Close()

	res := postJSON(t, srv.URL+"/v1/projects/proj-missing/messages", map[string]string{"text": "hi"})
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	pres := postJSON(t, srv.URL+"/v1/projects", map[string]string{"name": "demo"})
	p := decodeBody[models.Project](t, pres)

	res = postJSON(t, srv.URL+"/v1/projects/"+p.ID+"/messages", map[string]string{"text": "  "})
	defer res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errBody))
	require.NotEmpty(t, errBody["error"])
}
