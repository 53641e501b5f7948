package social

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

// Facebook posts to the association's page and to state groups through the
// Graph API.
type Facebook struct {
	client *http.Client
	base   string
	token  string
	pageID string
}

// NewFacebook builds the Facebook poster. client may be nil.
func NewFacebook(cfg *config.Config, client *http.Client) *Facebook {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Facebook{
		client: client,
		base:   strings.TrimSuffix(cfg.Social.GraphAPIBase, "/"),
		token:  cfg.Credentials.FacebookAccessToken,
		pageID: cfg.Credentials.FacebookPageID,
	}
}

// Platform implements Poster.
func (f *Facebook) Platform() string { return models.PlatformFacebook }

// Enabled implements Poster.
func (f *Facebook) Enabled() bool { return f.token != "" && f.pageID != "" }

// GroupsEnabled reports whether group posting has a token.
func (f *Facebook) GroupsEnabled() bool { return f.token != "" }

// PageMessage is the text posted to the page.
func PageMessage(c *models.ApprovedContent) string {
	return c.Headline + "\n\n" + c.Summary + "\n\n" + c.SocialText
}

// GroupMessage is the text posted to a state group.
func GroupMessage(c *models.ApprovedContent) string {
	return fmt.Sprintf("📍 %s NEWS\n\n%s\n\n%s", c.State, c.Headline, c.Summary)
}

// Post implements Poster. With a graphic on disk the post goes through the
// photos endpoint.
func (f *Facebook) Post(ctx context.Context, c *models.ApprovedContent) models.PlatformResult {
	if !f.Enabled() {
		return failure(f.Platform(), fmt.Errorf("Facebook %w", ErrNotConfigured))
	}

	msg := PageMessage(c)
	var (
		id  string
		err error
	)
	if _, statErr := os.Stat(c.GraphicPath); c.GraphicPath != "" && statErr == nil {
		id, err = f.photo(ctx, msg, c.GraphicPath)
	} else {
		id, err = f.feed(ctx, f.pageID, msg)
	}
	if err != nil {
		return failure(f.Platform(), err)
	}
	return models.PlatformResult{
		Platform: f.Platform(),
		Success:  true,
		PostID:   id,
		URL:      "https://facebook.com/" + id,
	}
}

// PostGroup posts c to one group.
func (f *Facebook) PostGroup(ctx context.Context, c *models.ApprovedContent, groupID string) models.PlatformResult {
	res := models.PlatformResult{Platform: models.PlatformFacebookGroup, GroupID: groupID}
	if !f.GroupsEnabled() {
		res.Error = "Facebook " + ErrNotConfigured.Error()
		return res
	}
	id, err := f.feed(ctx, groupID, GroupMessage(c))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.PostID = id
	res.URL = "https://facebook.com/" + id
	return res
}

func (f *Facebook) feed(ctx context.Context, target, message string) (string, error) {
	form := url.Values{"message": {message}, "access_token": {f.token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+"/"+url.PathEscape(target)+"/feed",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *Facebook) photo(ctx context.Context, message, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{"message": message, "access_token": f.token} {
		if err := mw.WriteField(k, v); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("source", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+"/"+url.PathEscape(f.pageID)+"/photos", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func (f *Facebook) do(req *http.Request) (string, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.ID != "" {
		return out.ID, nil
	}
	if out.PostID == "" {
		return "", fmt.Errorf("no post id in response")
	}
	return out.PostID, nil
}
