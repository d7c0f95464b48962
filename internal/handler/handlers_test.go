package handler

import (
	"bytes"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/library"
	"github.com/ivanov-nikolay/notes_storage/internal/storage"
	"github.com/ivanov-nikolay/notes_storage/internal/viewer"
)

type testEnv struct {
	handler  http.Handler
	files    *storage.FileStore
	store    *storage.MemoryStore
	renderer *viewer.Renderer
}

func newTestEnv(t *testing.T, limiter *IPLimiter) *testEnv {
	t.Helper()
	return newTestEnvWithViewer(t, limiter, config.ViewerConfig{})
}

func newTestEnvWithViewer(t *testing.T, limiter *IPLimiter, viewerCfg config.ViewerConfig) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Backend:              "memory",
			UploadRoot:           t.TempDir(),
			AllowedExtensions:    config.DefaultAllowedExtensions,
			MaxUploadSize:        1 << 20,
			MaxConcurrentUploads: 2,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			SessionTTL: time.Hour,
			ShareTTL:   time.Minute,
		},
		Viewer: viewerCfg,
	}

	files, err := storage.NewFileStore(cfg.Storage.UploadRoot)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	store := storage.NewMemoryStore()

	lib := library.New(files, store, cfg.AllowedSet())
	a := auth.New(store, store, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL,
		auth.WithBcryptCost(bcrypt.MinCost), auth.WithShareTTL(cfg.Auth.ShareTTL))
	renderer := viewer.New(files, a, cfg.Viewer)

	srv := NewServer(cfg, lib, renderer, a, limiter)
	return &testEnv{handler: srv.Handler(), files: files, store: store, renderer: renderer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// login регистрирует пользователя и возвращает cookie сессии
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	creds := url.Values{"username": {"alice"}, "password": {"s3cret"}}

	rec := e.do(postForm("/signup", creds))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("signup: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = e.do(postForm("/login", creds))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			if !c.HttpOnly {
				t.Error("session cookie must be HttpOnly")
			}
			return c
		}
	}
	t.Fatal("login did not set session cookie")
	return nil
}

func (e *testEnv) upload(t *testing.T, cookie *http.Cookie, folder string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("folder_name", folder); err != nil {
		t.Fatalf("write field: %v", err)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	return e.do(req)
}

func (e *testEnv) get(cookie *http.Cookie, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.do(req)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.get(nil, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/", "/folder/notes", "/read/notes/a.txt", "/static_view/notes/a.txt"} {
		rec := env.get(nil, target)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("GET %s: status = %d, location = %q", target, rec.Code, rec.Header().Get("Location"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "garbage"})
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Errorf("invalid cookie: status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestLoginFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(postForm("/login", url.Values{"username": {"nobody"}, "password": {"x"}}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Errorf("body does not mention the failure: %s", rec.Body.String())
	}
}

func TestSignupDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rec := env.do(postForm("/signup", url.Values{"username": {"alice"}, "password": {"other"}}))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	if rec := env.get(cookie, "/"); rec.Code != http.StatusOK {
		t.Fatalf("index before logout: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("logout: status = %d", rec.Code)
	}

	if rec := env.get(cookie, "/"); rec.Code != http.StatusSeeOther {
		t.Errorf("index after logout: status = %d, want redirect", rec.Code)
	}
}

func TestUploadAndBrowse(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	rec := env.upload(t, cookie, "notes", map[string]string{
		"a.txt":     "hello",
		"virus.exe": "MZ",
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("upload: status = %d, location = %q, body = %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}

	rec = env.get(cookie, "/")
	if !strings.Contains(rec.Body.String(), `href="/folder/notes"`) {
		t.Errorf("index does not list folder: %s", rec.Body.String())
	}

	rec = env.get(cookie, "/folder/notes")
	if rec.Code != http.StatusOK {
		t.Fatalf("folder: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "a.txt") {
		t.Errorf("folder page does not list a.txt")
	}
	if strings.Contains(rec.Body.String(), "virus.exe") {
		t.Errorf("folder page lists a rejected file")
	}

	rec = env.get(cookie, "/read/notes/a.txt")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<pre>hello</pre>") {
		t.Errorf("read: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.get(cookie, "/static_view/notes/a.txt")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Errorf("static_view: status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Errorf("Content-Disposition = %q, want inline", cd)
	}
}

func TestReadEscapesText(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)
	env.upload(t, cookie, "notes", map[string]string{"x.txt": "<script>alert(1)</script>"})

	rec := env.get(cookie, "/read/notes/x.txt")
	if strings.Contains(rec.Body.String(), "<script>") {
		t.Errorf("text content rendered unescaped: %s", rec.Body.String())
	}
}

func TestReadUnsupportedType(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)
	env.upload(t, cookie, "notes", map[string]string{"old.doc": "binary"})

	rec := env.get(cookie, "/read/notes/old.doc")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	if !strings.Contains(rec.Body.String(), "File type not supported for reading.") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDeleteMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	tests := []struct {
		target string
		body   string
	}{
		{"/delete_file/notes/none.txt", "File not found"},
		{"/delete_folder/ghost", "Folder not found"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.target, nil)
		req.AddCookie(cookie)
		rec := env.do(req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("POST %s: status = %d, want %d", tt.target, rec.Code, http.StatusNotFound)
		}
		if !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("POST %s: body = %q, want %q", tt.target, rec.Body.String(), tt.body)
		}
	}
}

func TestDeleteFileAndFolder(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)
	env.upload(t, cookie, "notes", map[string]string{"a.txt": "1", "b.txt": "2"})

	req := httptest.NewRequest(http.MethodPost, "/delete_file/notes/a.txt", nil)
	req.AddCookie(cookie)
	rec := env.do(req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/folder/notes" {
		t.Fatalf("delete_file: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if ok, _ := env.files.FileExists("notes", "a.txt"); ok {
		t.Error("a.txt still on disk")
	}

	req = httptest.NewRequest(http.MethodPost, "/delete_folder/notes", nil)
	req.AddCookie(cookie)
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("delete_folder: status = %d", rec.Code)
	}
	if ok, _ := env.files.FolderExists("notes"); ok {
		t.Error("folder still on disk")
	}
	if n := len(env.store.Records()); n != 0 {
		t.Errorf("records left after folder delete: %d", n)
	}
}

func TestCreateFolderInvalidName(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	req := postForm("/create_folder", url.Values{"folder_name": {".."}})
	req.AddCookie(cookie)
	if rec := env.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	rec := env.upload(t, cookie, "notes", map[string]string{"big.txt": strings.Repeat("x", 2<<20)})
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want a rejection", rec.Code)
	}
	if ok, _ := env.files.FileExists("notes", "big.txt"); ok {
		t.Error("oversized upload was stored")
	}
}

func TestIPLimiterRequestsPerSecond(t *testing.T) {
	limiter := NewIPLimiter(config.LimitsConfig{RequestsPerSecond: 1})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first request: status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	third := httptest.NewRecorder()
	h.ServeHTTP(third, other)
	if third.Code != http.StatusNoContent {
		t.Errorf("other IP: status = %d, want %d", third.Code, http.StatusNoContent)
	}
}

func TestIPLimiterUploadBytes(t *testing.T) {
	limiter := NewIPLimiter(config.LimitsConfig{MaxUploadBytesPerIP: 10})
	h := limiter.UploadQuota(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	post := func() int {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("123456")))
		return rec.Code
	}

	if code := post(); code != http.StatusNoContent {
		t.Fatalf("first upload: status = %d", code)
	}
	if code := post(); code != http.StatusForbidden {
		t.Errorf("second upload: status = %d, want %d", code, http.StatusForbidden)
	}

	limiter.Reset()
	if code := post(); code != http.StatusNoContent {
		t.Errorf("after reset: status = %d, want %d", code, http.StatusNoContent)
	}
}

func TestIPLimiterDownloadBytes(t *testing.T) {
	limiter := NewIPLimiter(config.LimitsConfig{MaxDownloadBytesPerIP: 8})
	h := limiter.DownloadQuota(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("0123456789"))
	})

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/static_view/notes/a.txt", nil))
		return rec
	}

	// первый ответ отдается целиком, квота списывается по факту
	if rec := get(); rec.Code != http.StatusOK || rec.Body.Len() != 10 {
		t.Fatalf("first download: status = %d, bytes = %d", rec.Code, rec.Body.Len())
	}
	if rec := get(); rec.Code != http.StatusForbidden {
		t.Errorf("second download: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	limiter.Reset()
	if rec := get(); rec.Code != http.StatusOK {
		t.Errorf("after reset: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestIPLimiterDeletes(t *testing.T) {
	limiter := NewIPLimiter(config.LimitsConfig{MaxDeletesPerIP: 2})
	h := limiter.DeleteQuota(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/delete_file/notes/a.txt", nil))
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusSeeOther, http.StatusSeeOther, http.StatusForbidden}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("delete %d: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}

func TestUploadQuotaIgnoresAnonymousPosts(t *testing.T) {
	limiter := NewIPLimiter(config.LimitsConfig{MaxUploadBytesPerIP: 4096})
	env := newTestEnv(t, limiter)

	big := url.Values{"username": {"mallory"}, "password": {strings.Repeat("x", 5000)}}
	for i := 0; i < 3; i++ {
		if rec := env.do(postForm("/login", big)); rec.Code != http.StatusUnauthorized {
			t.Fatalf("login: status = %d", rec.Code)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("y", 5000)))
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("anonymous upload: status = %d, want redirect to login", rec.Code)
	}

	cookie := env.login(t)
	rec := env.upload(t, cookie, "notes", map[string]string{"a.txt": "hello"})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("upload after anonymous posts: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestOfficeViewerFetchesWithoutSession(t *testing.T) {
	const publicURL = "https://notes.example.com"
	env := newTestEnvWithViewer(t, nil, config.ViewerConfig{
		OfficeURL: "https://view.officeapps.live.com/op/view.aspx",
		PublicURL: publicURL,
	})
	cookie := env.login(t)
	env.upload(t, cookie, "notes", map[string]string{"legacy.doc": "binary doc", "other.doc": "other"})

	if rec := env.get(cookie, "/read/notes/legacy.doc"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<iframe") {
		t.Fatalf("read: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	out, err := env.renderer.Render("notes", "legacy.doc")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	viewerURL, err := url.Parse(out.ViewerURL)
	if err != nil {
		t.Fatalf("parse ViewerURL: %v", err)
	}
	src := viewerURL.Query().Get("src")
	if !strings.HasPrefix(src, publicURL+"/shared_view/") {
		t.Fatalf("src = %q", src)
	}
	target := strings.TrimPrefix(src, publicURL)

	// внешний сервис приходит без cookie
	rec := env.get(nil, target)
	if rec.Code != http.StatusOK || rec.Body.String() != "binary doc" {
		t.Errorf("shared fetch: status = %d, location = %q, body = %q", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}

	// токен не открывает другие файлы
	token := strings.SplitN(target, "?", 2)[1]
	if rec := env.get(nil, "/shared_view/notes/other.doc?"+token); rec.Code != http.StatusForbidden {
		t.Errorf("other file with same token: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := env.get(nil, "/shared_view/notes/legacy.doc"); rec.Code != http.StatusForbidden {
		t.Errorf("missing token: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := env.get(nil, "/shared_view/notes/legacy.doc?token=forged"); rec.Code != http.StatusForbidden {
		t.Errorf("forged token: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	// токен сессии не подходит вместо токена доступа
	if rec := env.get(nil, "/shared_view/notes/legacy.doc?token="+url.QueryEscape(cookie.Value)); rec.Code != http.StatusForbidden {
		t.Errorf("session token: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestStaticViewContentDisposition(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t)

	// файл, положенный на диск в обход загрузки
	if _, err := env.files.MakeFolder("notes"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.files.SaveFile("notes", `say"hi".txt`, strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	rec := env.get(cookie, "/static_view/notes/"+url.PathEscape(`say"hi".txt`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Content-Disposition %q does not parse: %v", rec.Header().Get("Content-Disposition"), err)
	}
	if params["filename"] != `say"hi".txt` {
		t.Errorf("filename = %q", params["filename"])
	}
}
