package importsources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store/storetest"
)

const sample = `url,name,kind,status,comments
https://www.overdrive.com/rss,Overdrive,rss,active,owner operators
https://www.ttnews.com/rss.xml,,,,
https://www.ttnews.com/rss.xml,Transport Topics,rss,active,
ftp://example.com/feed,Bad,rss,active,
https://example.com/feed,Weird,podcast,active,
https://example.com/paused,Paused,rss,sleeping,
,Empty,rss,active,
`

func TestImport(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	res, err := NewImporter(st).Import(ctx, strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 7, res.Lines)
	require.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 5)
	require.Contains(t, res.Errors[0], "duplicate URL")

	sources, err := st.ListSources(ctx, string(models.SourceRSS), true)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	byURL := map[string]models.Source{}
	for _, s := range sources {
		byURL[s.URL] = s
	}
	require.Equal(t, "Overdrive", byURL["https://www.overdrive.com/rss"].Name)
	require.Equal(t, "owner operators", byURL["https://www.overdrive.com/rss"].Comments.String)
	require.Equal(t, "https://www.ttnews.com/rss.xml", byURL["https://www.ttnews.com/rss.xml"].Name)
	require.Equal(t, models.SourceActive, byURL["https://www.ttnews.com/rss.xml"].Status)
}

func TestImport_MissingURLColumn(t *testing.T) {
	_, err := NewImporter(storetest.New(t)).Import(context.Background(), strings.NewReader("name,kind\nA,rss\n"))
	require.ErrorContains(t, err, "required column 'url'")
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sources.csv")
	require.NoError(t, os.WriteFile(path, []byte("url\nhttps://www.enr.com/rss\n"), 0o644))

	st := storetest.New(t)
	res, err := NewImporter(st).ImportFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sources.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("url,name\nhttps://www.constructiondive.com/feeds/news/,Construction Dive\n"))
	}))
	defer srv.Close()

	res, err = NewImporter(st).ImportFile(ctx, srv.URL+"/sources.csv")
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	_, err = NewImporter(st).ImportFile(ctx, srv.URL+"/missing.csv")
	require.ErrorContains(t, err, "HTTP status 404")

	_, err = NewImporter(st).ImportFile(ctx, filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
