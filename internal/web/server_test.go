package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/content"
	"github.com/mvpetrera/portfolio/internal/feed"
	"github.com/mvpetrera/portfolio/internal/models"
	"github.com/mvpetrera/portfolio/internal/storage"
	"github.com/mvpetrera/portfolio/internal/subscribers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testSite struct {
	*httptest.Server
	site   *Server
	store  *storage.MemoryStorage
	client *http.Client
}

func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := map[string]string{
		"blog/first.md":     "---\ntitle: First steps\nsummary: The first one\ndate: 2023-01-01\n---\nHello.\n",
		"blog/second.md":    "---\ntitle: Second\nsummary: Another\ndate: 2023-06-01\n---\nMore.\n",
		"blog/third.md":     "---\ntitle: Third\nsummary: Again\ndate: 2024-01-01\n---\nAnd more.\n",
		"blog/fourth.md":    "---\ntitle: Fourth\nsummary: Latest\ndate: 2024-06-01\n---\n**Bold** move.\n",
		"projects/site.md":  "---\ntitle: This site\nsummary: Go all the way\ndate: 2024-02-01\nurl: https://mvpetrera.com\n---\n",
		"projects/other.md": "---\ntitle: Thesis\nsummary: Research\ndate: 2025-01-01\n---\n",
	}
	for name, body := range docs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// newTestSite serves a site whose about page reads the subscriber count
// from its own /api/youtube endpoint.
func newTestSite(t *testing.T, subscriberCount string) *testSite {
	t.Helper()
	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	store := storage.NewMemoryStorage(nil)
	require.NoError(t, storage.SeedTopics(context.Background(), store))
	library, err := content.NewLibrary(writeContent(t), nil)
	require.NoError(t, err)

	site, err := NewServer(Options{
		Feed:            feed.NewService(store, nil),
		Content:         library,
		Subscribers:     subscribers.NewClient(ts.URL, nil, nil),
		Logger:          zap.NewNop(),
		SubscriberCount: subscriberCount,
	})
	require.NoError(t, err)
	handler = site.Handler()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testSite{Server: ts, site: site, store: store, client: client}
}

func (ts *testSite) get(t *testing.T, path string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return ts.do(t, req)
}

func (ts *testSite) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(t, req)
}

func (ts *testSite) postJSON(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return ts.do(t, req)
}

func (ts *testSite) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (ts *testSite) topic(t *testing.T, name string) models.Topic {
	t.Helper()
	topics, err := ts.store.GetTopics(context.Background())
	require.NoError(t, err)
	for _, topic := range topics {
		if topic.Name == name {
			return topic
		}
	}
	t.Fatalf("topic %q not found", name)
	return models.Topic{}
}

func TestHome(t *testing.T) {
	ts := newTestSite(t, "81600")

	resp, body := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Pinned")
	assert.Contains(t, body, "This site")
	assert.Contains(t, body, "Thesis")
	assert.Contains(t, body, "Fourth")
	assert.Contains(t, body, "Third")
	assert.Contains(t, body, "Second")
	assert.NotContains(t, body, "First steps")
	assert.Contains(t, body, `aria-current="page">Home</a>`)
	assert.Contains(t, body, logoLight)
}

func TestAbout_SubscriberCount(t *testing.T) {
	ts := newTestSite(t, "1234567")

	resp, body := ts.get(t, "/about")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "(1.23M subscribers strong)")
	assert.Contains(t, body, `aria-current="page">About</a>`)
}

func TestAbout_Fallback(t *testing.T) {
	ts := newTestSite(t, "81600")
	// point the client at an address nothing listens on
	ts.site.Subscribers = subscribers.NewClient("http://127.0.0.1:1", nil, nil)

	_, body := ts.get(t, "/about")
	assert.Contains(t, body, "(81.6K subscribers strong)")
}

func TestYoutube(t *testing.T) {
	ts := newTestSite(t, "81600")

	resp, body := ts.get(t, "/api/youtube")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"subscribers":"81600"}`, body)
}

func TestBlog(t *testing.T) {
	ts := newTestSite(t, "0")

	resp, body := ts.get(t, "/blog/fourth")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<strong>Bold</strong> move.")

	resp, body = ts.get(t, "/blog")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "First steps")

	resp, _ = ts.get(t, "/blog/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.get(t, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTheme(t *testing.T) {
	ts := newTestSite(t, "0")

	resp, _ := ts.postForm(t, "/theme", url.Values{"theme": {"dark"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body := ts.get(t, "/about")
	assert.Contains(t, body, `<html lang="en" class="dark" data-theme="dark">`)
	assert.Contains(t, body, logoDark)

	resp, _ = ts.postForm(t, "/theme", url.Values{"theme": {"sepia"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.postForm(t, "/theme", url.Values{"theme": {"system"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = ts.get(t, "/", prefersColorScheme, "dark")
	assert.Contains(t, body, `class="dark" data-theme="system"`)
}

func TestCommunity_PostFlow(t *testing.T) {
	ts := newTestSite(t, "0")
	projects := ts.topic(t, "Projects")

	resp, _ := ts.postForm(t, "/community/posts", url.Values{
		"content":  {"check out github.com/matteovpetrera"},
		"topic_id": {projects.ID},
		"username": {"matteo"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/community/topics/"+projects.ID, resp.Header.Get("Location"))

	resp, body := ts.get(t, "/community")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<a href="http://github.com/matteovpetrera" class="break-words text-link"`)
	assert.Contains(t, body, ">github.com/matteovpetrera</a>")
	assert.Contains(t, body, "matteo")
	assert.Contains(t, body, ">Projects</a>")

	resp, body = ts.get(t, "/community/topics/"+projects.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Posts in Projects.")

	general := ts.topic(t, "General")
	_, body = ts.get(t, "/community/topics/"+general.ID)
	assert.Contains(t, body, "No posts yet.")

	resp, _ = ts.get(t, "/community/topics/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommunity_JSON(t *testing.T) {
	ts := newTestSite(t, "0")

	resp, body := ts.postJSON(t, "/community/posts", `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post feed.PostView
	require.NoError(t, json.Unmarshal([]byte(body), &post))
	assert.Equal(t, "hello ", string(post.Content))
	assert.Equal(t, "Anonymous", post.Author.DisplayName)

	resp, body = ts.postJSON(t, "/community/posts/"+post.ID+"/replies", `{"content":"first reply"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var reply feed.ReplyView
	require.NoError(t, json.Unmarshal([]byte(body), &reply))
	assert.Equal(t, post.ID, reply.PostID)

	resp, _ = ts.postJSON(t, "/community/posts/"+post.ID+"/replies",
		`{"content":"`+strings.Repeat("a", models.MaxReplyLength+1)+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.postJSON(t, "/community/posts/missing/replies", `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.postJSON(t, "/community/posts", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.get(t, "/community/posts/"+post.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "first reply")
	assert.Contains(t, body, "1 reply")
}

func TestCommunity_FailedWriteKeepsReaderNew(t *testing.T) {
	ts := newTestSite(t, "0")

	resp, _ := ts.postJSON(t, "/community/posts", `{"content":"lost","topicId":"missing","username":"ghost"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, ts.client.Jar.Cookies(mustParseURL(t, ts.URL)))

	resp, body := ts.postJSON(t, "/community/posts", `{"content":"hello","username":"ada"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var post feed.PostView
	require.NoError(t, json.Unmarshal([]byte(body), &post))
	assert.Equal(t, "ada", post.Author.DisplayName)

	resp, _ = ts.postJSON(t, "/community/posts/"+post.ID+"/replies",
		`{"content":"`+strings.Repeat("a", models.MaxReplyLength+1)+`","username":"bob"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// the session still names the author of the first successful post
	resp, body = ts.postJSON(t, "/community/posts/"+post.ID+"/replies", `{"content":"again","username":"bob"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var reply feed.ReplyView
	require.NoError(t, json.Unmarshal([]byte(body), &reply))
	assert.Equal(t, "ada", reply.Author.DisplayName)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCommunity_Reactions(t *testing.T) {
	ts := newTestSite(t, "0")
	post, err := ts.store.AddPost(context.Background(), "", "", "react to me")
	require.NoError(t, err)

	resp, body := ts.postJSON(t, "/community/posts/"+post.ID+"/reactions", `{"emoji":"🎉"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary models.ReactionSummary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, models.ReactionParty, summary.Selected)
	assert.Equal(t, 1, summary.Total())

	_, body = ts.postJSON(t, "/community/posts/"+post.ID+"/reactions", `{"emoji":"🎉"}`)
	summary = models.ReactionSummary{}
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, models.Reaction(""), summary.Selected)
	assert.Equal(t, 0, summary.Total())

	resp, _ = ts.postJSON(t, "/community/posts/"+post.ID+"/reactions", `{"emoji":"💩"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIPosts_CORS(t *testing.T) {
	ts := newTestSite(t, "0")
	_, err := ts.store.AddPost(context.Background(), "", "", "from the api")
	require.NoError(t, err)

	resp, body := ts.get(t, "/api/posts", "Origin", "https://example.org")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var posts []feed.PostView
	require.NoError(t, json.Unmarshal([]byte(body), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "from the api ", string(posts[0].Content))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, _ = ts.do(t, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	ts := newTestSite(t, "0")
	ts.get(t, "/")

	resp, body := ts.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `portfolio_http_requests_total{method="GET",route="/",status="200"} 1`)
	assert.Contains(t, body, "portfolio_subscriber_fetch_fallback_total")
}

func TestLive(t *testing.T) {
	ts := newTestSite(t, "0")
	ctx := context.Background()
	post, err := ts.store.AddPost(ctx, "", "", "live post")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/community/posts/" + post.ID + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// the subscription is registered after the handshake, keep replying
	// until one of them is streamed back
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_, _ = ts.site.Feed.AddReply(ctx, post.ID, nil, feed.Author{}, "pushed https://go.dev")
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply feed.ReplyView
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, post.ID, reply.PostID)
	assert.Contains(t, string(reply.Content), ">go.dev</a>")

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/community/posts/missing/live", nil)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}
