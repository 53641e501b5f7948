package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dghubble/oauth1"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

// Twitter posts through the v2 tweets endpoint with OAuth 1.0a user context.
// Media goes through the v1.1 upload endpoint first.
type Twitter struct {
	client    *http.Client
	apiBase   string
	uploadURL string
	enabled   bool
}

// NewTwitter builds the Twitter poster. base, when not nil, is the transport
// the signed client wraps.
func NewTwitter(ctx context.Context, cfg *config.Config, base *http.Client) *Twitter {
	cr := cfg.Credentials
	t := &Twitter{
		apiBase:   strings.TrimSuffix(cfg.Social.TwitterAPIBase, "/"),
		uploadURL: cfg.Social.TwitterUploadURL,
		enabled:   cfg.Features()[config.FeatureTwitter],
	}
	if base == nil {
		base = &http.Client{Timeout: requestTimeout}
	}
	ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
	oc := oauth1.NewConfig(cr.TwitterAPIKey, cr.TwitterAPISecret)
	t.client = oc.Client(ctx, oauth1.NewToken(cr.TwitterAccessToken, cr.TwitterAccessSecret))
	t.client.Timeout = requestTimeout
	return t
}

// Platform implements Poster.
func (t *Twitter) Platform() string { return models.PlatformTwitter }

// Enabled implements Poster.
func (t *Twitter) Enabled() bool { return t.enabled }

// Post implements Poster.
func (t *Twitter) Post(ctx context.Context, c *models.ApprovedContent) models.PlatformResult {
	if !t.enabled {
		return failure(t.Platform(), fmt.Errorf("Twitter %w", ErrNotConfigured))
	}

	var mediaIDs []string
	if c.GraphicPath != "" {
		if _, err := os.Stat(c.GraphicPath); err == nil {
			id, err := t.upload(ctx, c.GraphicPath)
			if err != nil {
				return failure(t.Platform(), fmt.Errorf("media upload: %w", err))
			}
			mediaIDs = append(mediaIDs, id)
		}
	}

	id, err := t.tweet(ctx, c.SocialText, mediaIDs)
	if err != nil {
		return failure(t.Platform(), err)
	}
	return models.PlatformResult{
		Platform: t.Platform(),
		Success:  true,
		PostID:   id,
		URL:      "https://twitter.com/user/status/" + id,
	}
}

func (t *Twitter) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.MediaIDString == "" {
		return "", errors.New("no media id in response")
	}
	return out.MediaIDString, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

func (t *Twitter) tweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload := tweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		payload.Media = &tweetMedia{MediaIDs: mediaIDs}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiBase+"/2/tweets", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", errors.New("no tweet id in response")
	}
	return out.Data.ID, nil
}
