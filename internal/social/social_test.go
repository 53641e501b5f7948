package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

func testConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Social.TwitterAPIBase = url
	cfg.Social.TwitterUploadURL = url + "/1.1/media/upload.json"
	cfg.Social.GraphAPIBase = url + "/v18.0"
	cfg.Credentials.TwitterAPIKey = "key"
	cfg.Credentials.TwitterAPISecret = "secret"
	cfg.Credentials.TwitterAccessToken = "token"
	cfg.Credentials.TwitterAccessSecret = "token-secret"
	cfg.Credentials.FacebookAccessToken = "fb-token"
	cfg.Credentials.FacebookPageID = "1234"
	return cfg
}

func testContent(t *testing.T, withGraphic bool) *models.ApprovedContent {
	c := &models.ApprovedContent{
		ID:         "abc123def456",
		Headline:   "Georgia Funding Boost",
		Summary:    "Georgia DOT announced new road funding.",
		SocialText: "Big news for Georgia haulers #NDTA",
		State:      "Georgia",
		StateAbbr:  "GA",
	}
	if withGraphic {
		c.GraphicPath = filepath.Join(t.TempDir(), "graphic_abc123def456.png")
		require.NoError(t, os.WriteFile(c.GraphicPath, []byte("\x89PNG fake"), 0o644))
	}
	return c
}

type recorded struct {
	path  string
	auth  string
	form  map[string]string
	files map[string]string
	tweet tweetRequest
}

func fakePlatforms(calls *[]recorded) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), form: map[string]string{}, files: map[string]string{}}
		switch {
		case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"):
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				for k, v := range r.MultipartForm.Value {
					rec.form[k] = v[0]
				}
				for k, fh := range r.MultipartForm.File {
					f, _ := fh[0].Open()
					b, _ := io.ReadAll(f)
					f.Close()
					rec.files[k] = string(b)
				}
			}
		case r.Header.Get("Content-Type") == "application/json":
			json.NewDecoder(r.Body).Decode(&rec.tweet)
		default:
			r.ParseForm()
			for k, v := range r.PostForm {
				rec.form[k] = v[0]
			}
		}
		*calls = append(*calls, rec)

		switch r.URL.Path {
		case "/1.1/media/upload.json":
			fmt.Fprint(w, `{"media_id":42,"media_id_string":"42"}`)
		case "/2/tweets":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"data":{"id":"1799","text":"ok"}}`)
		case "/v18.0/1234/photos":
			fmt.Fprint(w, `{"id":"555","post_id":"1234_555"}`)
		case "/v18.0/1234/feed", "/v18.0/g-1/feed":
			fmt.Fprint(w, `{"id":"1234_777"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Unsupported post request","code":100}}`)
		}
	}))
}

func TestTwitter_PostWithMedia(t *testing.T) {
	var calls []recorded
	srv := fakePlatforms(&calls)
	defer srv.Close()

	tw := NewTwitter(context.Background(), testConfig(srv.URL), srv.Client())
	require.True(t, tw.Enabled())

	res := tw.Post(context.Background(), testContent(t, true))
	require.True(t, res.Success, res.Error)
	require.Equal(t, "1799", res.PostID)
	require.Equal(t, "https://twitter.com/user/status/1799", res.URL)

	require.Len(t, calls, 2)
	require.Equal(t, "/1.1/media/upload.json", calls[0].path)
	require.Equal(t, "\x89PNG fake", calls[0].files["media"])
	require.True(t, strings.HasPrefix(calls[0].auth, "OAuth "))
	require.Contains(t, calls[0].auth, `oauth_consumer_key="key"`)

	require.Equal(t, "/2/tweets", calls[1].path)
	require.Equal(t, "Big news for Georgia haulers #NDTA", calls[1].tweet.Text)
	require.Equal(t, []string{"42"}, calls[1].tweet.Media.MediaIDs)
}

func TestTwitter_NotConfigured(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Credentials.TwitterAccessSecret = ""
	res := NewTwitter(context.Background(), cfg, nil).Post(context.Background(), testContent(t, false))
	require.False(t, res.Success)
	require.Equal(t, models.PlatformTwitter, res.Platform)
	require.Contains(t, res.Error, "not configured")
}

func TestFacebook_Post(t *testing.T) {
	var calls []recorded
	srv := fakePlatforms(&calls)
	defer srv.Close()
	fb := NewFacebook(testConfig(srv.URL), srv.Client())

	res := fb.Post(context.Background(), testContent(t, true))
	require.True(t, res.Success, res.Error)
	require.Equal(t, "555", res.PostID)
	require.Equal(t, "https://facebook.com/555", res.URL)
	require.Equal(t, "/v18.0/1234/photos", calls[0].path)
	require.Equal(t, "fb-token", calls[0].form["access_token"])
	require.Equal(t, "Georgia Funding Boost\n\nGeorgia DOT announced new road funding.\n\nBig news for Georgia haulers #NDTA", calls[0].form["message"])
	require.Equal(t, "\x89PNG fake", calls[0].files["source"])

	res = fb.Post(context.Background(), testContent(t, false))
	require.True(t, res.Success, res.Error)
	require.Equal(t, "1234_777", res.PostID)
	require.Equal(t, "/v18.0/1234/feed", calls[1].path)
}

func TestFacebook_PostGroup(t *testing.T) {
	var calls []recorded
	srv := fakePlatforms(&calls)
	defer srv.Close()
	fb := NewFacebook(testConfig(srv.URL), srv.Client())

	res := fb.PostGroup(context.Background(), testContent(t, false), "g-1")
	require.True(t, res.Success)
	require.Equal(t, models.PlatformFacebookGroup, res.Platform)
	require.Equal(t, "g-1", res.GroupID)
	require.Equal(t, "📍 Georgia NEWS\n\nGeorgia Funding Boost\n\nGeorgia DOT announced new road funding.", calls[0].form["message"])

	res = fb.PostGroup(context.Background(), testContent(t, false), "unknown")
	require.False(t, res.Success)
	require.Contains(t, res.Error, "Unsupported post request")
}

type stubPoster struct {
	name string
	ok   bool
}

func (s stubPoster) Platform() string { return s.name }
func (s stubPoster) Enabled() bool    { return s.ok }
func (s stubPoster) Post(context.Context, *models.ApprovedContent) models.PlatformResult {
	if !s.ok {
		return models.PlatformResult{Platform: s.name, Error: "boom"}
	}
	return models.PlatformResult{Platform: s.name, Success: true}
}

func TestPublisher_PostAll(t *testing.T) {
	p := NewPublisher(0, stubPoster{"twitter", false}, stubPoster{"facebook", true})
	require.Equal(t, []string{"facebook"}, p.Enabled())

	results, ok := p.PostAll(context.Background(), testContent(t, false))
	require.True(t, ok)
	require.Len(t, results, 2)
	require.False(t, results[0].Success)
	require.True(t, results[1].Success)

	_, ok = NewPublisher(0, stubPoster{"twitter", false}).PostAll(context.Background(), testContent(t, false))
	require.False(t, ok)
}
