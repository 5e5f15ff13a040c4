package circlepress

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/circlepress/storage"
)

const testToken = "test-admin-token"

type testApp struct {
	*App
	sender *fakeSender
	gen    *fakeGenerator
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	objects, err := storage.NewLocal(filepath.Join(dir, "uploads"), "https://circle.example.org/uploads")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	cfg := Config{
		Site: SiteConfig{Name: "Circle", URL: "https://circle.example.org", Timezone: "UTC"},
		Server: ServerConfig{
			AdminPassword: "secret",
			SessionSecret: "0123456789abcdef0123456789abcdef",
			AdminToken:    testToken,
		},
		Mail: MailConfig{From: "digest@circle.example.org"},
	}
	sender := &fakeSender{}
	gen := &fakeGenerator{reply: "plain text, not json"}
	app := New(cfg,
		WithStore(setupTestStore(t)),
		WithTextGenerator(gen),
		WithMailSender(sender),
		WithObjectStore(objects),
		WithLogger(quietLogger()),
	)
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return &testApp{App: app, sender: sender, gen: gen}
}

// do sends a request through the full middleware stack. A nil body sends
// no payload; anything else is JSON encoded.
func (ta *testApp) do(t *testing.T, method, target string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ta *testApp) createPost(t *testing.T, title string) Post {
	t.Helper()
	rec := ta.do(t, http.MethodPost, "/posts", map[string]any{
		"title":   title,
		"content": "<p>Story about " + title + "</p>",
		"author":  "Ada",
		"status":  "published",
		"tags":    []string{"news"},
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[Post](t, rec)
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	ta := setupTestApp(t)
	tests := []struct {
		method, target string
	}{
		{http.MethodPost, "/posts"},
		{http.MethodPut, "/posts"},
		{http.MethodDelete, "/posts?id=x"},
		{http.MethodGet, "/posts/history?id=x"},
		{http.MethodPost, "/posts/generate"},
		{http.MethodPost, "/digest"},
		{http.MethodPost, "/digest/preview"},
		{http.MethodPost, "/digest/preview-selected"},
		{http.MethodPost, "/images"},
	}
	for _, tt := range tests {
		rec := ta.do(t, tt.method, tt.target, map[string]any{}, false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tt.method, tt.target, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}
}

func TestPostLifecycle(t *testing.T) {
	ta := setupTestApp(t)
	post := ta.createPost(t, "Garden Day")
	if post.Slug != "garden-day" || post.Version != 1 {
		t.Fatalf("created = %+v", post)
	}

	rec := ta.do(t, http.MethodGet, "/posts", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if list := decode[[]Post](t, rec); len(list) != 1 || list[0].ID != post.ID {
		t.Fatalf("list = %+v", list)
	}

	rec = ta.do(t, http.MethodPut, "/posts", map[string]any{
		"id":      post.ID,
		"version": post.Version,
		"excerpt": "Bring gloves",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decode[Post](t, rec)
	if updated.Excerpt != "Bring gloves" || updated.Version != 2 {
		t.Fatalf("updated = %+v", updated)
	}

	rec = ta.do(t, http.MethodPut, "/posts", map[string]any{
		"id":      post.ID,
		"version": post.Version,
		"title":   "Stale",
	}, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale update status = %d, want 409", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/posts/history?id="+post.ID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	history := decode[[]HistoryEntry](t, rec)
	if len(history) != 1 || history[0].Field != "excerpt" {
		t.Fatalf("history = %+v", history)
	}

	rec = ta.do(t, http.MethodDelete, "/posts?id="+post.ID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if msg := decode[messageResponse](t, rec); msg.Message != "Post deleted" {
		t.Errorf("delete message = %q, want %q", msg.Message, "Post deleted")
	}

	rec = ta.do(t, http.MethodGet, "/posts?id="+post.ID, nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestCreatePostValidation(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodPost, "/posts", map[string]any{"content": "no title"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed status = %d, want 400", rec.Code)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodPatch, "/posts", nil, true)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestSearchPosts(t *testing.T) {
	ta := setupTestApp(t)
	ta.createPost(t, "Garden Day")
	ta.createPost(t, "Chess Club Results")

	rec := ta.do(t, http.MethodGet, "/posts?q=chess", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[[]Post](t, rec)
	if len(got) != 1 || got[0].Title != "Chess Club Results" {
		t.Fatalf("search = %+v", got)
	}
}

func TestGenerateFallsBackOnNonJSON(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodPost, "/posts/generate", map[string]any{
		"transcript": "We met at the library and talked about books.",
		"tone":       "friendly",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	draft := decode[GeneratedDraft](t, rec)
	if draft.Title != DefaultDraftTitle || draft.Content != "plain text, not json" {
		t.Fatalf("draft = %+v", draft)
	}
	if ta.gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", ta.gen.calls)
	}

	rec = ta.do(t, http.MethodPost, "/posts/generate", map[string]any{"transcript": "  "}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty transcript status = %d, want 400", rec.Code)
	}
}

func TestDigestSend(t *testing.T) {
	ta := setupTestApp(t)
	post := ta.createPost(t, "Garden Day")

	rec := ta.do(t, http.MethodPost, "/digest", map[string]any{
		"email":   "not-an-address",
		"postIds": []string{post.ID},
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid email status = %d, want 400", rec.Code)
	}
	if len(ta.sender.sent) != 0 {
		t.Fatalf("transport called %d times for invalid email", len(ta.sender.sent))
	}

	rec = ta.do(t, http.MethodPost, "/digest", map[string]any{
		"email":   "reader@example.org",
		"postIds": []string{post.ID},
		"subject": "Weekly",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decode[digestSendResponse](t, rec)
	if !res.Success || res.ID != "id-a" {
		t.Fatalf("response = %+v", res)
	}
	if len(ta.sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(ta.sender.sent))
	}
	email := ta.sender.sent[0]
	if email.Subject != "Weekly" || !strings.Contains(email.HTML, "Garden Day") {
		t.Errorf("email = %+v", email)
	}
}

func TestDigestPreview(t *testing.T) {
	ta := setupTestApp(t)
	post := ta.createPost(t, "Garden Day")
	day := post.PublishedAt.UTC().Format(DateLayout)

	rec := ta.do(t, http.MethodPost, "/digest/preview", map[string]any{
		"startDate": day,
		"endDate":   day,
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[digestPreviewResponse](t, rec); len(got.Posts) != 1 {
		t.Fatalf("preview posts = %d, want 1", len(got.Posts))
	}

	rec = ta.do(t, http.MethodPost, "/digest/preview", map[string]any{
		"startDate": "2024-02-10",
		"endDate":   "2024-02-01",
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reversed range status = %d, want 400", rec.Code)
	}
}

func TestDigestPreviewSelected(t *testing.T) {
	ta := setupTestApp(t)
	post := ta.createPost(t, "Garden Day")

	rec := ta.do(t, http.MethodPost, "/digest/preview-selected", map[string]any{"postIds": []string{}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty status = %d", rec.Code)
	}
	got := decode[digestPreviewResponse](t, rec)
	if len(got.Posts) != 0 || got.EmailHTML == "" {
		t.Fatalf("empty preview = %+v", got)
	}

	rec = ta.do(t, http.MethodPost, "/digest/preview-selected", map[string]any{
		"postIds":      []string{post.ID},
		"introduction": "Hello **neighbours**",
	}, true)
	got = decode[digestPreviewResponse](t, rec)
	if len(got.Posts) != 1 || !strings.Contains(got.EmailHTML, "<strong>neighbours</strong>") {
		t.Fatalf("preview = %+v", got)
	}
}

func TestDigestLatest(t *testing.T) {
	ta := setupTestApp(t)
	ta.createPost(t, "Garden Day")
	ta.now = func() time.Time { return time.Now().Add(time.Hour) }

	rec := ta.do(t, http.MethodGet, "/digest/latest?days=3", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Garden Day") {
		t.Error("latest digest missing recent post")
	}

	rec = ta.do(t, http.MethodGet, "/digest/latest?days=0", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("days=0 status = %d, want 400", rec.Code)
	}
}

func TestFeedAndSitemap(t *testing.T) {
	ta := setupTestApp(t)
	ta.createPost(t, "Garden Day")

	rec := ta.do(t, http.MethodGet, "/feed.xml", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Garden Day") {
		t.Fatalf("feed = %d %s", rec.Code, rec.Body.String())
	}
	rec = ta.do(t, http.MethodGet, "/sitemap.xml", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "garden-day") {
		t.Fatalf("sitemap = %d %s", rec.Code, rec.Body.String())
	}
}

func TestImageUpload(t *testing.T) {
	ta := setupTestApp(t)

	img := image.NewRGBA(image.Rect(0, 0, 1600, 800))
	img.Set(10, 10, color.RGBA{R: 255, A: 255})
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "Garden Photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(pngBuf.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	up := decode[UploadedImage](t, rec)
	if up.Width != 800 || up.Height != 400 {
		t.Errorf("size = %dx%d, want 800x400", up.Width, up.Height)
	}
	if !strings.HasPrefix(up.URL, "https://circle.example.org/uploads/") {
		t.Errorf("URL = %q", up.URL)
	}
}

func TestSessionLoginFlow(t *testing.T) {
	ta := setupTestApp(t)
	srv := httptest.NewServer(ta.Echo)
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	post := func(path, csrf string, body any) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		if csrf != "" {
			req.Header.Set("X-CSRF-Token", csrf)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := post("/admin/login", "", map[string]string{"password": "wrong"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}
	if resp := post("/admin/login", "", map[string]string{"password": "secret"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	resp, err := client.Get(srv.URL + "/admin/session")
	if err != nil {
		t.Fatalf("GET /admin/session: %v", err)
	}
	var sess sessionResponse
	json.NewDecoder(resp.Body).Decode(&sess)
	resp.Body.Close()
	if !sess.Authenticated || sess.CSRFToken == "" {
		t.Fatalf("session = %+v", sess)
	}

	input := map[string]any{"title": "From Session", "content": "body", "author": "Ada"}
	if resp := post("/posts", "", input); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing csrf status = %d, want 403", resp.StatusCode)
	}
	if resp := post("/posts", sess.CSRFToken, input); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create with session status = %d", resp.StatusCode)
	}

	post("/admin/logout", sess.CSRFToken, nil)
	if resp := post("/posts", sess.CSRFToken, input); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestGetPostsHidesUnpublishedFromPublic(t *testing.T) {
	ta := setupTestApp(t)
	published := ta.createPost(t, "Garden Day")
	rec := ta.do(t, http.MethodPost, "/posts", map[string]any{
		"title":   "Garden Draft",
		"content": "<p>not ready</p>",
		"author":  "Ada",
		"status":  "draft",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft status = %d", rec.Code)
	}
	draft := decode[Post](t, rec)

	tests := []struct {
		name   string
		target string
		auth   bool
		want   []string
	}{
		{"public list", "/posts", false, []string{published.ID}},
		{"admin list", "/posts", true, []string{draft.ID, published.ID}},
		{"public search", "/posts?q=garden", false, []string{published.ID}},
		{"admin search", "/posts?q=garden", true, []string{published.ID, draft.ID}},
	}
	for _, tt := range tests {
		rec := ta.do(t, http.MethodGet, tt.target, nil, tt.auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.name, rec.Code)
		}
		got := map[string]bool{}
		for _, p := range decode[[]Post](t, rec) {
			got[p.ID] = true
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %d posts, want %d", tt.name, len(got), len(tt.want))
		}
		for _, id := range tt.want {
			if !got[id] {
				t.Errorf("%s: missing post %s", tt.name, id)
			}
		}
	}

	if rec := ta.do(t, http.MethodGet, "/posts?id="+draft.ID, nil, false); rec.Code != http.StatusNotFound {
		t.Errorf("public get draft status = %d, want 404", rec.Code)
	}
	if rec := ta.do(t, http.MethodGet, "/posts?id="+draft.ID, nil, true); rec.Code != http.StatusOK {
		t.Errorf("admin get draft status = %d, want 200", rec.Code)
	}
}
