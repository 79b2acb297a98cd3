package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/config"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

// wavHeader is enough for content sniffing to report audio/wave.
var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00")

type fakeReconciler struct {
	ids []string
}

func (f *fakeReconciler) EnqueueReconcile(ctx context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

type testAPI struct {
	handler http.Handler
	disk    *objectstore.Disk
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	disk, err := objectstore.NewDisk(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)
	cfg := &config.Config{
		MaxFileSize:  1 << 20,
		AllowedTypes: []string{"audio/wave", "audio/mpeg", "video/mp4"},
		SignedURLTTL: time.Hour,
	}
	svc := capture.NewService(storage.NewMemoryStore(), disk, metadata.NewRegistry(""), nil)
	if opts.Media == nil {
		opts.Media = http.FileServer(http.Dir(disk.Root()))
	}
	return &testAPI{handler: New(cfg, svc, nil, opts).Routes(), disk: disk}
}

func (a *testAPI) do(t *testing.T, method, target, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, target, user string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return a.do(t, method, target, user, body, "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createCapture(t *testing.T, user string, payload map[string]any) map[string]any {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/captures", user, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

type formFile struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, file *formFile, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, Options{})
	rec := a.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMissingUserHeader(t *testing.T) {
	a := newTestAPI(t, Options{})
	rec := a.doJSON(t, http.MethodGet, "/captures", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], UserHeader)
}

func TestCreateTextCaptureWithBody(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{
		"title": "Standup",
		"kind":  "text",
		"text":  "one two three",
	})
	assert.Equal(t, "TEXT", out["kind"])
	md := out["metadata"].(map[string]any)
	assert.Equal(t, float64(3), md[metadata.FieldWordCount])
	assert.Equal(t, float64(1), md[metadata.FieldReadingTime])
	assert.Equal(t, "one two three", out["text"].(map[string]any)["content"])
}

func TestCreateCapture_Errors(t *testing.T) {
	a := newTestAPI(t, Options{})

	rec := a.doJSON(t, http.MethodPost, "/captures", "u1", map[string]any{"title": "x", "kind": "IMAGE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/captures", "u1", map[string]any{"kind": "TEXT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/captures", "u1", map[string]any{
		"title":    "sparse",
		"kind":     "AUDIO",
		"metadata": map[string]any{"language": "en"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "missing required field")

	rec = a.doJSON(t, http.MethodPost, "/captures", "u1", map[string]any{
		"title": "audio with text",
		"kind":  "AUDIO",
		"text":  "nope",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/captures", "u1", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCapture_IntegerMetadataSurvivesJSON(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{
		"title": "Full metadata",
		"kind":  "TEXT",
		"metadata": map[string]any{
			"language":      "fr",
			"source_device": "phone",
			"word_count":    10,
			"reading_time":  1,
		},
	})
	md := out["metadata"].(map[string]any)
	assert.Equal(t, "fr", md[metadata.FieldLanguage])
}

func TestCaptureOwnership(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "mine", "kind": "TEXT"})
	id := out["id"].(string)

	assert.Equal(t, http.StatusOK, a.doJSON(t, http.MethodGet, "/captures/"+id, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.doJSON(t, http.MethodGet, "/captures/"+id, "u2", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.doJSON(t, http.MethodDelete, "/captures/"+id, "u2", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.doJSON(t, http.MethodGet, "/captures/missing", "u1", nil).Code)
}

func TestUpdateCapture(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "draft", "kind": "TEXT"})
	id := out["id"].(string)

	rec := a.doJSON(t, http.MethodPatch, "/captures/"+id, "u1", map[string]any{
		"title":    "final",
		"metadata": map[string]any{"language": "de", "mood": "calm"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, "final", updated["title"])
	md := updated["metadata"].(map[string]any)
	assert.Equal(t, "de", md[metadata.FieldLanguage])
	assert.Equal(t, "calm", md["mood"])

	rec = a.doJSON(t, http.MethodPatch, "/captures/"+id, "u1", map[string]any{"kind": "AUDIO"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.doJSON(t, http.MethodPatch, "/captures/"+id, "u1", map[string]any{
		"metadata": map[string]any{"word_count": "many"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListCaptures(t *testing.T) {
	a := newTestAPI(t, Options{})
	a.createCapture(t, "u1", map[string]any{"title": "Morning notes", "kind": "TEXT"})
	a.createCapture(t, "u1", map[string]any{"title": "Voice memo", "kind": "AUDIO"})
	a.createCapture(t, "u2", map[string]any{"title": "Other user", "kind": "TEXT"})

	rec := a.doJSON(t, http.MethodGet, "/captures", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["captures"], 2)

	rec = a.doJSON(t, http.MethodGet, "/captures?kind=audio", "u1", nil)
	list := decode(t, rec)["captures"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Voice memo", list[0].(map[string]any)["title"])

	rec = a.doJSON(t, http.MethodGet, "/captures?q=morning", "u1", nil)
	assert.Len(t, decode(t, rec)["captures"], 1)

	rec = a.doJSON(t, http.MethodGet, "/captures?limit=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveText(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "essay", "kind": "TEXT"})
	id := out["id"].(string)

	content := strings.TrimSpace(strings.Repeat("word ", 400))
	rec := a.doJSON(t, http.MethodPut, "/captures/"+id+"/text", "u1", map[string]any{"content": content})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md := decode(t, rec)["metadata"].(map[string]any)
	assert.Equal(t, float64(400), md[metadata.FieldWordCount])
	assert.Equal(t, float64(2), md[metadata.FieldReadingTime])

	audio := a.createCapture(t, "u1", map[string]any{"title": "memo", "kind": "AUDIO"})
	rec = a.doJSON(t, http.MethodPut, "/captures/"+audio["id"].(string)+"/text", "u1", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveMedia_UploadAndServe(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "memo", "kind": "AUDIO"})
	id := out["id"].(string)

	payload := append(append([]byte{}, wavHeader...), bytes.Repeat([]byte{0}, 1000)...)
	body, ct := multipartBody(t, &formFile{name: "Memo.WAV", data: payload}, map[string]string{
		"duration":    "90.5",
		"description": "morning thoughts",
	})
	rec := a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode(t, rec)
	md := updated["metadata"].(map[string]any)
	assert.Equal(t, float64(len(payload)), md[metadata.FieldFileSize])
	assert.Equal(t, 90.5, md[metadata.FieldDurationSeconds])
	media := updated["media"].(map[string]any)
	assert.Equal(t, "audio/wave", media["contentType"])
	assert.Equal(t, "Memo.WAV", media["fileName"])
	assert.Equal(t, "morning thoughts", media["description"])
	key := media["fileKey"].(string)
	assert.True(t, strings.HasPrefix(key, "captures/audio/"))
	assert.True(t, strings.HasSuffix(key, ".wav"))

	rec = a.doJSON(t, http.MethodGet, "/captures/"+id+"/media/url?expires=15m", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	urlOut := decode(t, rec)
	assert.Equal(t, "http://localhost/media/"+key, urlOut["url"])
	assert.Equal(t, float64(900), urlOut["expiresIn"])

	rec = a.do(t, http.MethodGet, "/media/"+key, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestSaveMedia_FieldsOnly(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "clip", "kind": "VIDEO"})
	id := out["id"].(string)

	body, ct := multipartBody(t, nil, map[string]string{"duration": "1m30s"})
	rec := a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md := decode(t, rec)["metadata"].(map[string]any)
	assert.Equal(t, float64(90), md[metadata.FieldDurationSeconds])

	rec = a.doJSON(t, http.MethodGet, "/captures/"+id+"/media/url", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveMedia_Rejections(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "memo", "kind": "AUDIO"})
	id := out["id"].(string)

	body, ct := multipartBody(t, &formFile{name: "notes.txt", data: []byte("hello there")}, nil)
	rec := a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body, ct = multipartBody(t, &formFile{name: "big.wav", data: append(append([]byte{}, wavHeader...), make([]byte, 1<<20)...)}, nil)
	rec = a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	body, ct = multipartBody(t, nil, map[string]string{"duration": "-3"})
	rec = a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodPut, "/captures/"+id+"/media", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	text := a.createCapture(t, "u1", map[string]any{"title": "note", "kind": "TEXT"})
	body, ct = multipartBody(t, &formFile{name: "a.wav", data: wavHeader}, nil)
	rec = a.do(t, http.MethodPut, "/captures/"+text["id"].(string)+"/media", "u1", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcile_Inline(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "memo", "kind": "AUDIO"})
	id := out["id"].(string)

	rec := a.doJSON(t, http.MethodPost, "/captures/"+id+"/reconcile", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, ct := multipartBody(t, &formFile{name: "a.wav", data: wavHeader}, nil)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct).Code)

	rec = a.doJSON(t, http.MethodPost, "/captures/"+id+"/reconcile", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md := decode(t, rec)["metadata"].(map[string]any)
	assert.Equal(t, float64(len(wavHeader)), md[metadata.FieldFileSize])
}

func TestReconcile_Queued(t *testing.T) {
	rc := &fakeReconciler{}
	a := newTestAPI(t, Options{Reconciler: rc})
	out := a.createCapture(t, "u1", map[string]any{"title": "memo", "kind": "AUDIO"})
	id := out["id"].(string)

	body, ct := multipartBody(t, &formFile{name: "a.wav", data: wavHeader}, nil)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPut, "/captures/"+id+"/media", "u1", body, ct).Code)

	rec := a.doJSON(t, http.MethodPost, "/captures/"+id+"/reconcile", "u1", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{id}, rc.ids)
}

func TestImportPDF_RejectsGarbage(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "doc", "kind": "TEXT"})
	id := out["id"].(string)

	body, ct := multipartBody(t, &formFile{name: "doc.pdf", data: []byte("not a pdf")}, nil)
	rec := a.do(t, http.MethodPost, "/captures/"+id+"/text/pdf", "u1", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "unreadable pdf")

	body, ct = multipartBody(t, nil, map[string]string{"note": "x"})
	rec = a.do(t, http.MethodPost, "/captures/"+id+"/text/pdf", "u1", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportPDF_TooLarge(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "doc", "kind": "TEXT"})
	id := out["id"].(string)

	data := bytes.Repeat([]byte("%"), 1<<20+10)
	body, ct := multipartBody(t, &formFile{name: "big.pdf", data: data}, nil)
	rec := a.do(t, http.MethodPost, "/captures/"+id+"/text/pdf", "u1", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTags(t *testing.T) {
	a := newTestAPI(t, Options{})

	rec := a.doJSON(t, http.MethodPost, "/tags", "u1", map[string]any{"name": "work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tagID := decode(t, rec)["id"].(string)

	rec = a.doJSON(t, http.MethodPost, "/tags", "u1", map[string]any{"name": "work"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/tags", "u1", map[string]any{"name": strings.Repeat("x", 51)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodGet, "/tags", "u1", nil)
	assert.Len(t, decode(t, rec)["tags"], 1)

	out := a.createCapture(t, "u1", map[string]any{"title": "tagged", "kind": "TEXT", "tagIds": []string{tagID}})
	assert.Equal(t, []any{tagID}, out["tagIds"])

	rec = a.doJSON(t, http.MethodPost, "/captures", "u2", map[string]any{"title": "x", "kind": "TEXT", "tagIds": []string{tagID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegrationsAndSyncs(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "note", "kind": "TEXT"})
	syncsPath := "/captures/" + out["id"].(string) + "/syncs"

	rec := a.doJSON(t, http.MethodGet, syncsPath, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["syncs"])

	rec = a.doJSON(t, http.MethodPost, "/integrations", "u1", map[string]any{"kind": "notion", "credentials": map[string]any{"token": "secret"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
	integration := decode(t, rec)
	assert.Equal(t, "NOTION", integration["kind"])
	assert.Equal(t, true, integration["active"])
	integrationID := integration["id"].(string)

	rec = a.doJSON(t, http.MethodPost, "/integrations", "u1", map[string]any{"kind": "trello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodGet, "/integrations", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["integrations"], 1)
	rec = a.doJSON(t, http.MethodGet, "/integrations", "u2", nil)
	assert.Empty(t, decode(t, rec)["integrations"])

	rec = a.doJSON(t, http.MethodPost, syncsPath, "u1", map[string]any{"integrationId": integrationID, "externalId": "page-1", "status": "success"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "SUCCESS", decode(t, rec)["status"])

	rec = a.doJSON(t, http.MethodPost, syncsPath, "u1", map[string]any{"integrationId": "missing", "externalId": "page-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.doJSON(t, http.MethodPost, syncsPath, "u1", map[string]any{"integrationId": integrationID, "externalId": "page-2", "status": "later"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/integrations", "u2", map[string]any{"kind": "ASANA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	foreignID := decode(t, rec)["id"].(string)
	rec = a.doJSON(t, http.MethodPost, syncsPath, "u1", map[string]any{"integrationId": foreignID, "externalId": "page-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodGet, syncsPath, "u1", nil)
	syncs := decode(t, rec)["syncs"].([]any)
	require.Len(t, syncs, 1)
	assert.Equal(t, "page-1", syncs[0].(map[string]any)["externalId"])
}

func TestDeleteCapture(t *testing.T) {
	a := newTestAPI(t, Options{})
	out := a.createCapture(t, "u1", map[string]any{"title": "bye", "kind": "TEXT"})
	id := out["id"].(string)

	assert.Equal(t, http.StatusNoContent, a.doJSON(t, http.MethodDelete, "/captures/"+id, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.doJSON(t, http.MethodGet, "/captures/"+id, "u1", nil).Code)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90.5")
	require.NoError(t, err)
	assert.Equal(t, 90500*time.Millisecond, d)

	d, err = parseDuration("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = parseDuration("soon")
	assert.Error(t, err)

	for _, v := range []string{"-1", "-2m", "NaN", "Inf", "-Inf", "1e10", "1e300"} {
		_, err = parseDuration(v)
		assert.Error(t, err, v)
	}

	d, err = parseDuration("9e9")
	require.NoError(t, err)
	assert.Equal(t, 9000000000*time.Second, d)
}

func TestResolveType(t *testing.T) {
	assert.Equal(t, "audio/wave", resolveType("audio/wave", "application/octet-stream", "a.wav"))
	assert.Equal(t, "audio/mpeg", resolveType("application/octet-stream", "audio/mpeg", "a.bin"))
	assert.Equal(t, "application/octet-stream", resolveType("application/octet-stream", "", "noext"))
}
