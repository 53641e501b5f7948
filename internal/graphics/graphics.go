// Package graphics renders the square social graphic attached to a report.
package graphics

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

// Canvas and layout, in pixels.
const (
	Size = 1080

	panelHeight  = 450
	panelAlpha   = 240
	margin       = 50
	wrapColumns  = 28
	maxHeadLines = 2

	downloadTimeout = 10 * time.Second
	maxImageBytes   = 20 << 20
)

var (
	brandBlue = color.RGBA{0x00, 0x33, 0x66, 0xff}
	brandGold = color.RGBA{0xfd, 0xb9, 0x13, 0xff}
)

var (
	moneyPattern   = regexp.MustCompile(`\$[\d.]+[MBK]?`)
	percentPattern = regexp.MustCompile(`\d+%`)
)

// imageKeywords picks background search terms from report content.
var imageKeywords = []struct {
	triggers []string
	terms    []string
}{
	{[]string{"dump truck", "dumper"}, []string{"dump-truck", "construction-vehicle", "heavy-equipment"}},
	{[]string{"safety", "accident"}, []string{"construction-safety", "safety-equipment", "construction-worker"}},
	{[]string{"equipment", "machinery"}, []string{"excavator", "construction-equipment", "heavy-machinery"}},
	{[]string{"infrastructure", "highway", "road"}, []string{"highway-construction", "road-construction", "infrastructure"}},
	{[]string{"construction"}, []string{"construction-site", "construction-worker", "building-construction"}},
}

var defaultTerms = []string{"construction-site", "dump-truck", "construction"}

// DefaultBackgrounds are tried in order; "%d" is the canvas size and "%s" a
// search term.
var DefaultBackgrounds = []string{
	"https://picsum.photos/%[1]d/%[1]d",
	"https://source.unsplash.com/%[1]dx%[1]d/?%[2]s",
}

type faces struct {
	logo, stat, text, footer font.Face
}

// Renderer draws report graphics into a directory.
type Renderer struct {
	dir         string
	website     string
	backgrounds []string
	client      *http.Client
	faces       faces
}

// NewRenderer builds a renderer writing into the configured graphics
// directory. client may be nil.
func NewRenderer(cfg *config.Config, client *http.Client) (*Renderer, error) {
	f, err := loadFaces()
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	return &Renderer{
		dir:         cfg.GraphicsDir(),
		website:     cfg.Social.WebsiteLabel,
		backgrounds: DefaultBackgrounds,
		client:      client,
		faces:       f,
	}, nil
}

// WithBackgrounds replaces the background sources.
func (r *Renderer) WithBackgrounds(urls ...string) *Renderer {
	r.backgrounds = urls
	return r
}

func loadFaces() (faces, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("failed to parse bold font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("failed to parse regular font: %w", err)
	}

	var f faces
	for _, spec := range []struct {
		dst  *font.Face
		font *opentype.Font
		size float64
	}{
		{&f.logo, bold, 45},
		{&f.stat, bold, 65},
		{&f.text, regular, 32},
		{&f.footer, regular, 28},
	} {
		face, err := opentype.NewFace(spec.font, &opentype.FaceOptions{Size: spec.size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return faces{}, fmt.Errorf("failed to build font face: %w", err)
		}
		*spec.dst = face
	}
	return f, nil
}

// Path is where the graphic of report id is written.
func (r *Renderer) Path(id string) string {
	return filepath.Join(r.dir, "graphic_"+id+".png")
}

// Render draws the graphic of rep and returns the written file path.
func (r *Renderer) Render(ctx context.Context, rep *models.Report) (string, error) {
	log.Info().Str("report_id", rep.ID).Str("headline", rep.Headline).Msg("Creating graphic")

	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	bg := r.Background(ctx, rep)
	draw.CatmullRom.Scale(img, img.Bounds(), bg, bg.Bounds(), draw.Src, nil)
	blur(img, 2)
	darken(img, 0.7)

	panelTop := Size - panelHeight
	draw.Draw(img, image.Rect(0, panelTop, Size, Size),
		image.NewUniform(color.NRGBA{255, 255, 255, panelAlpha}), image.Point{}, draw.Over)

	logoY := panelTop + 30
	r.text(img, r.faces.logo, brandBlue, margin, logoY, "NDTA")
	fill(img, image.Rect(margin, logoY+55, 180, logoY+65), brandGold)

	stat, headline := KeyStat(rep.Headline)
	y := logoY + 90
	if stat != "" {
		r.text(img, r.faces.stat, brandGold, margin, y, stat)
		y += 80
	}

	lines := Wrap(headline, wrapColumns)
	if len(lines) > maxHeadLines {
		lines = lines[:maxHeadLines]
	}
	for _, line := range lines {
		r.text(img, r.faces.text, brandBlue, margin, y, line)
		y += 45
	}

	if st, ok := rep.PrimaryState(); ok {
		y += 10
		fill(img, image.Rect(margin, y+8, margin+14, y+22), brandGold)
		r.text(img, r.faces.footer, brandBlue, margin+24, y, st.Name)
	}

	r.text(img, r.faces.footer, brandBlue, margin, Size-50, r.website)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create graphics directory: %w", err)
	}
	path := r.Path(rep.ID)
	if err := writePNG(path, img); err != nil {
		return "", err
	}
	log.Info().Str("path", path).Msg("Graphic created")
	return path, nil
}

// text draws s with its top-left corner at (x, y).
func (r *Renderer) text(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func fill(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create graphic file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode graphic: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Background downloads a background photo for rep, trying each source in
// order, and falls back to the brand gradient.
func (r *Renderer) Background(ctx context.Context, rep *models.Report) image.Image {
	term := searchTerm(rep.Headline + " " + rep.ExecutiveSummary)
	for _, tmpl := range r.backgrounds {
		u := tmpl
		if strings.Contains(tmpl, "%") {
			u = fmt.Sprintf(tmpl, Size, term)
		}
		img, err := r.download(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Background source failed")
			continue
		}
		return img
	}
	log.Warn().Msg("All image sources failed, using gradient background")
	return Gradient()
}

func (r *Renderer) download(ctx context.Context, u string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty background image")
	}
	return img, nil
}

func searchTerm(text string) string {
	text = strings.ToLower(text)
	terms := defaultTerms
	for _, k := range imageKeywords {
		if containsAny(text, k.triggers) {
			terms = k.terms
			break
		}
	}
	return terms[rand.IntN(len(terms))]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Gradient is the fallback background: brand blue fading lighter downwards.
func Gradient() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	for y := 0; y < Size; y++ {
		ratio := float64(y) / Size
		c := color.RGBA{
			R: uint8(100 * ratio),
			G: uint8(51 + 150*ratio),
			B: uint8(min(255, 102+200*ratio)),
			A: 0xff,
		}
		draw.Draw(img, image.Rect(0, y, Size, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}

// KeyStat pulls the first dollar amount, or failing that the first
// percentage, out of headline. It returns the stat and the headline without
// it.
func KeyStat(headline string) (stat, rest string) {
	stat = moneyPattern.FindString(headline)
	if stat == "" {
		stat = percentPattern.FindString(headline)
	}
	if stat == "" {
		return "", strings.TrimSpace(headline)
	}
	return stat, strings.Join(strings.Fields(strings.ReplaceAll(headline, stat, "")), " ")
}

// Wrap breaks text into lines of at most width columns, splitting words that
// are longer than a line.
func Wrap(text string, width int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
