package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/satd/internal/catalog"
	"github.com/starford/satd/internal/ingest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/session"
	"github.com/starford/satd/internal/testutil"
)

// testEnv sets up a session service with a temp catalog and export dir.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*session.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*session.Service, http.Handler) {
	t.Helper()
	_, exports := testutil.TestExportDir(t)
	svc, err := session.NewService(session.Options{
		Ingest:  ingest.Options{TextPreviewLimit: 1 << 20, AIPayloadLimit: 1 << 20},
		Exports: exports,
		Catalog: testutil.TestCatalog(t),
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router http.Handler, body any) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session = %d, body = %s", w.Code, w.Body.String())
	}
	var info SessionInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.ID == "" {
		t.Fatal("session id is empty")
	}
	return info.ID
}

type uploadPart struct {
	path, mime, body string
}

// upload sends parts under the "file" field with their relative paths as
// parallel "path" values.
func upload(t *testing.T, router http.Handler, id string, parts []uploadPart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+p.path[strings.LastIndexByte(p.path, '/')+1:]+`"`)
		h.Set("Content-Type", p.mime)
		fw, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(p.body))
		if err := mw.WriteField("path", p.path); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var exampleParts = []uploadPart{
	{"proj/a.txt", "text/plain", "hello"},
	{"proj/sub/b.md", "text/markdown", "# B"},
}

func TestCreateAndGetSession(t *testing.T) {
	_, router := testEnv(t, "")

	id := createSession(t, router, map[string]string{"projectName": "demo", "overview": "A demo."})

	w := do(t, router, http.MethodGet, "/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var detail SessionDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Project.Name != "demo" {
		t.Errorf("project name = %q", detail.Project.Name)
	}
	if len(detail.Tree) != 0 {
		t.Errorf("tree len = %d, want 0", len(detail.Tree))
	}

	w = do(t, router, http.MethodGet, "/sessions", nil)
	var list SessionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(list.Sessions))
	}
}

func TestCreateSession_EmptyBody(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestDeleteSession(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)

	if w := do(t, router, http.MethodDelete, "/sessions/"+id, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestUpdateDetails(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)

	w := do(t, router, http.MethodPut, "/sessions/"+id+"/details", map[string]string{"projectName": "renamed", "modules": "core"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var info SessionInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Project.Name != "renamed" || info.Project.Modules != "core" {
		t.Errorf("project = %+v", info.Project)
	}
}

func TestIngestUpload(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)

	w := upload(t, router, id, exampleParts)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d, body = %s", w.Code, w.Body.String())
	}
	var res IngestResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.RootName != "proj" || res.Files != 2 || res.Dirs != 2 {
		t.Errorf("ingest response = %+v", res)
	}

	w = do(t, router, http.MethodGet, "/sessions/"+id+"/tree", nil)
	var tr TreeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if tr.Generation != res.Generation {
		t.Errorf("generation = %d, want %d", tr.Generation, res.Generation)
	}
	if len(tr.Tree) != 1 || tr.Tree[0].Path != "proj" {
		t.Fatalf("tree = %+v", tr.Tree)
	}
	if len(tr.Tree[0].Children) != 2 {
		t.Errorf("root children = %d, want 2", len(tr.Tree[0].Children))
	}

	// The project name defaults to the root folder.
	w = do(t, router, http.MethodGet, "/sessions/"+id, nil)
	var detail SessionDetail
	_ = json.Unmarshal(w.Body.Bytes(), &detail)
	if detail.Project.Name != "proj" {
		t.Errorf("project name = %q, want proj", detail.Project.Name)
	}
}

func TestIngest_UnsupportedContentType(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/ingest", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("ingest = %d, want 415", w.Code)
	}
}

func TestIngestDir(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	dir, _ := testutil.TestProject(t, "game", map[string]string{
		"rules.md":        "# Rules",
		"assets/logo.svg": "<svg/>",
	})

	w := do(t, router, http.MethodPost, "/sessions/"+id+"/ingest", IngestDirRequest{Dir: dir})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest = %d, body = %s", w.Code, w.Body.String())
	}
	var res IngestResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.RootName != "game" || res.Files != 2 {
		t.Errorf("ingest response = %+v", res)
	}

	w = do(t, router, http.MethodPost, "/sessions/"+id+"/ingest", IngestDirRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty dir = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/sessions/"+id+"/ingest", IngestDirRequest{Dir: dir + "-missing"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing dir = %d, want 422", w.Code)
	}
}

func TestIngestDir_OutsideAllowedRoots(t *testing.T) {
	allowed, _ := testutil.TestProject(t, "game", map[string]string{"rules.md": "# Rules"})
	outside, _ := testutil.TestProject(t, "secrets", map[string]string{"key.txt": "k"})

	svc, err := session.NewService(session.Options{
		Ingest:       ingest.Options{TextPreviewLimit: 1 << 10, AIPayloadLimit: 1 << 10},
		AllowedRoots: []string{filepath.Dir(allowed)},
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	router := NewRouter(svc, false, "", nil)
	id := createSession(t, router, nil)

	if w := do(t, router, http.MethodPost, "/sessions/"+id+"/ingest", IngestDirRequest{Dir: allowed}); w.Code != http.StatusOK {
		t.Fatalf("allowed ingest = %d, body = %s", w.Code, w.Body.String())
	}
	w := do(t, router, http.MethodPost, "/sessions/"+id+"/ingest", IngestDirRequest{Dir: outside})
	if w.Code != http.StatusForbidden {
		t.Errorf("outside ingest = %d, want 403", w.Code)
	}

	w = do(t, router, http.MethodGet, "/sessions/"+id+"/tree", nil)
	var tr TreeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if len(tr.Tree) != 1 || tr.Tree[0].Path != "game" {
		t.Errorf("tree after rejected ingest = %+v", tr.Tree)
	}
}

func TestPatchNode(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}

	typ := string(models.Code)
	tags := []string{" core ", "", "ui"}
	w := do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj/a.txt", NodePatchRequest{UserDefinedType: &typ, Tags: &tags})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Node
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if n.Classification != models.Code {
		t.Errorf("classification = %q", n.Classification)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "core" || n.Tags[1] != "ui" {
		t.Errorf("tags = %v", n.Tags)
	}

	// Encoded slashes are accepted.
	rel := "depends on b"
	w = do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj%2Fa.txt", NodePatchRequest{Relationships: &rel})
	if w.Code != http.StatusOK {
		t.Fatalf("encoded patch = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestPatchNode_Invalid(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}

	bogus := "Spaceship"
	w := do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj/a.txt", NodePatchRequest{UserDefinedType: &bogus})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown classification = %d, want 400", w.Code)
	}

	dirType := string(models.Directory)
	w = do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj/a.txt", NodePatchRequest{UserDefinedType: &dirType})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Directory on a file = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj/a.txt", NodePatchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}

	typ := string(models.Code)
	w = do(t, router, http.MethodPatch, "/sessions/"+id+"/nodes/proj/missing.txt", NodePatchRequest{UserDefinedType: &typ})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing node = %d, want 404", w.Code)
	}
}

func TestFocusAndExpanded(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}

	if w := do(t, router, http.MethodPut, "/sessions/"+id+"/focus", FocusRequest{Path: "proj/a.txt"}); w.Code != http.StatusNoContent {
		t.Fatalf("focus = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPut, "/sessions/"+id+"/focus", FocusRequest{Path: "proj/nope"}); w.Code != http.StatusNotFound {
		t.Errorf("focus missing = %d, want 404", w.Code)
	}

	w := do(t, router, http.MethodPost, "/sessions/"+id+"/expanded/proj/sub", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expand = %d, body = %s", w.Code, w.Body.String())
	}
	var er ExpandedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if !er.Expanded || er.Path != "proj/sub" {
		t.Errorf("expanded = %+v", er)
	}

	w = do(t, router, http.MethodGet, "/sessions/"+id+"/tree", nil)
	var tr TreeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if tr.Focus != "proj/a.txt" {
		t.Errorf("focus = %q", tr.Focus)
	}
	if len(tr.Expanded) != 1 || tr.Expanded[0] != "proj/sub" {
		t.Errorf("expanded = %v", tr.Expanded)
	}

	if w := do(t, router, http.MethodPost, "/sessions/"+id+"/expanded/proj/a.txt", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expand file = %d, want 400", w.Code)
	}
}

func TestClearTree(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/sessions/"+id+"/tree", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	w := do(t, router, http.MethodGet, "/sessions/"+id+"/tree", nil)
	var tr TreeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if len(tr.Tree) != 0 {
		t.Errorf("tree after clear = %d nodes", len(tr.Tree))
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}

	w := do(t, router, http.MethodPost, "/sessions/"+id+"/analyze/proj/a.txt", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("analyze = %d, want 503", w.Code)
	}
	var e errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if !strings.Contains(e.Error, "API Key not configured") {
		t.Errorf("error = %q", e.Error)
	}
}

func TestManifestAndReport(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, map[string]string{"overview": "Dropped by the upload."})
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/sessions/"+id+"/details", map[string]string{"projectName": "proj", "overview": "Small demo."}); w.Code != http.StatusOK {
		t.Fatalf("details = %d", w.Code)
	}

	w := do(t, router, http.MethodGet, "/sessions/"+id+"/manifest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("manifest = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/yaml") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"projectName: proj", "aiModelUsed: '" + session.ModelMissing + "'", "path: proj/sub/b.md"} {
		if !strings.Contains(body, want) {
			t.Errorf("manifest missing %q:\n%s", want, body)
		}
	}

	w = do(t, router, http.MethodGet, "/sessions/"+id+"/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Small demo.") {
		t.Errorf("report missing overview:\n%s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "Dropped by the upload.") {
		t.Errorf("report kept the overview from before the upload:\n%s", w.Body.String())
	}
}

func TestExport_Nothing(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := do(t, router, http.MethodGet, "/sessions/"+id+"/export", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty export = %d, want 422", w.Code)
	}
}

func TestExportListDownloadDelete(t *testing.T) {
	_, router := testEnv(t, "")
	id := createSession(t, router, nil)
	if w := upload(t, router, id, exampleParts); w.Code != http.StatusOK {
		t.Fatalf("ingest = %d", w.Code)
	}

	w := do(t, router, http.MethodGet, "/sessions/"+id+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".sAtd.zip") {
		t.Errorf("content disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("archive entries = %d, want 2", len(zr.File))
	}

	w = do(t, router, http.MethodGet, "/exports?session="+id, nil)
	var list ExportListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || len(list.Exports) != 1 {
		t.Fatalf("exports = %+v", list)
	}
	exp := list.Exports[0]
	if exp.ProjectName != "proj" {
		t.Errorf("project = %q", exp.ProjectName)
	}

	w = do(t, router, http.MethodGet, "/exports?q=sub", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) == 0 {
		t.Error("search returned no results")
	}

	w = do(t, router, http.MethodGet, "/exports/"+exp.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download = %d", w.Code)
	}
	if _, err := catalog.ReadArchiveManifest(w.Body.Bytes()); err != nil {
		t.Errorf("downloaded archive: %v", err)
	}

	if w := do(t, router, http.MethodDelete, "/exports/"+exp.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete export = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/exports/"+exp.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("download after delete = %d, want 404", w.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema = %d", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/sessions/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("get missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE without token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_NotMounted(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusNotFound {
		t.Errorf("events without broker = %d, want 404", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	// The query parameter is only honoured for the event stream.
	req = httptest.NewRequest(http.MethodGet, "/sessions?access_token=tok", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("sessions with query token = %d, want 401", w.Code)
	}
}
