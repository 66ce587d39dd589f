package drop

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

type fakeSession struct {
	handler func(url string) *http.Response
	gets    []string
}

func (s *fakeSession) Get(_ context.Context, url string) (*http.Response, error) {
	s.gets = append(s.gets, url)
	return s.handler(url), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func imageRecord(contentURL string) map[string]interface{} {
	return map[string]interface{}{
		"id":             float64(4837),
		"slug":           "2wr4",
		"item_type":      "image",
		"name":           "Screen shot.png",
		"file_name":      "Screen%20shot.png",
		"created_at":     "2021-05-03T10:15:00Z",
		"view_counter":   float64(42),
		"source_url":     contentURL,
		"content_length": float64(5),
		"favourite":      false,
	}
}

func TestFromRecord(t *testing.T) {
	d, err := FromRecord(&fakeSession{}, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)

	assert.Equal(t, int64(4837), d.ID)
	assert.Equal(t, "2wr4", d.Slug)
	assert.Equal(t, "image", d.Type)
	assert.Equal(t, "Screen shot.png", d.Name)
	assert.Equal(t, "Screen shot.png", d.Original)
	assert.Equal(t, "", d.Target)
	assert.Equal(t, "https://content.example.com/x", d.Content)
	assert.Equal(t, int64(5), d.Size)
	assert.Equal(t, int64(42), d.Views)
	assert.Equal(t, time.Date(2021, 5, 3, 10, 15, 0, 0, time.UTC), d.Uploaded)
	assert.False(t, d.Favourite)
}

func TestFromRecord_RemoteURLFallback(t *testing.T) {
	record := imageRecord("")
	delete(record, "source_url")
	record["remote_url"] = "https://remote.example.com/y"

	d, err := FromRecord(&fakeSession{}, record)
	require.NoError(t, err)
	assert.Equal(t, "https://remote.example.com/y", d.Content)
}

func TestFromRecord_OriginalFallsBackToName(t *testing.T) {
	record := imageRecord("https://content.example.com/x")
	delete(record, "file_name")

	d, err := FromRecord(&fakeSession{}, record)
	require.NoError(t, err)
	assert.Equal(t, "Screen shot.png", d.Original)
}

func TestFromRecord_BadTimestamp(t *testing.T) {
	record := imageRecord("https://content.example.com/x")
	record["created_at"] = "not a date"

	_, err := FromRecord(&fakeSession{}, record)
	var normErr *NormalizationError
	require.ErrorAs(t, err, &normErr)
}

func TestFetch(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, `{"id": 1, "slug": "abc", "item_type": "image", "name": "a.png", "created_at": "2021-05-03"}`)
		},
	}

	d, err := Fetch(context.Background(), session, "https://cl.ly/abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cl.ly/abc"}, session.gets)
	assert.Equal(t, "abc", d.Slug)
	assert.Equal(t, time.Date(2021, 5, 3, 0, 0, 0, 0, time.UTC), d.Uploaded)
}

func TestFetch_NotOK(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusNotFound, "")
		},
	}

	_, err := Fetch(context.Background(), session, "https://cl.ly/abc")
	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, http.StatusNotFound, retrievalErr.StatusCode)
	assert.Equal(t, "https://cl.ly/abc", retrievalErr.URL)
}

func TestStoragePath(t *testing.T) {
	d, err := FromRecord(&fakeSession{}, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)
	assert.Equal(t, "2021/5/3/4837--2wr4--image--Screen shot.png", d.StoragePath())
}

func TestSave_Image(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, "hello")
		},
	}
	record := imageRecord("https://content.example.com/x")
	d, err := FromRecord(session, record)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drop")
	require.NoError(t, d.Save(context.Background(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, []string{"https://content.example.com/x"}, session.gets)

	_, err = os.Stat(path + ".info.json")
	require.NoError(t, err)
	_, err = os.Stat(path + ".webloc")
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(d.Uploaded))
}

func TestSave_Idempotent(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, "hello")
		},
	}
	d, err := FromRecord(session, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drop")
	require.NoError(t, d.Save(context.Background(), path))
	first, err := os.ReadFile(path + ".info.json")
	require.NoError(t, err)

	require.NoError(t, d.Save(context.Background(), path))
	second, err := os.ReadFile(path + ".info.json")
	require.NoError(t, err)

	// one download for two saves, identical snapshot bytes
	assert.Len(t, session.gets, 1)
	assert.Equal(t, first, second)
}

func TestSave_SizeMismatchRedownloads(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, "hello")
		},
	}
	d, err := FromRecord(session, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drop")
	require.NoError(t, os.WriteFile(path, []byte("stale content"), 0600))

	require.NoError(t, d.Save(context.Background(), path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Len(t, session.gets, 1)
}

func TestSave_UnknownSizeKeepsExisting(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, "hello")
		},
	}
	record := imageRecord("https://content.example.com/x")
	delete(record, "content_length")
	d, err := FromRecord(session, record)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drop")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0600))

	require.NoError(t, d.Save(context.Background(), path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content))
	assert.Empty(t, session.gets)
}

func TestSave_Bookmark(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			t.Fatal("bookmark save must not download")
			return nil
		},
	}
	record := map[string]interface{}{
		"id":           float64(99),
		"slug":         "lnk1",
		"item_type":    "bookmark",
		"name":         "example",
		"redirect_url": "https://example.com/x",
		"created_at":   "2021-05-03",
	}
	d, err := FromRecord(session, record)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drop")
	require.NoError(t, d.Save(context.Background(), path))

	data, err := os.ReadFile(path + ".webloc")
	require.NoError(t, err)

	var payload weblocPayload
	_, err = plist.Unmarshal(data, &payload)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", payload.URL)

	// no bare content file for bookmarks
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(path + ".webloc")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(d.Uploaded))
}

func TestSave_DerivedPathCreatesDirectories(t *testing.T) {
	session := &fakeSession{
		handler: func(url string) *http.Response {
			return jsonResponse(http.StatusOK, "hello")
		},
	}
	d, err := FromRecord(session, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, d.Save(context.Background(), filepath.Join(dir, filepath.FromSlash(d.StoragePath()))))

	_, err = os.Stat(filepath.Join(dir, "2021", "5", "3", "4837--2wr4--image--Screen shot.png"))
	require.NoError(t, err)
}

func TestSnapshot_SortedKeys(t *testing.T) {
	d, err := FromRecord(&fakeSession{}, imageRecord("https://content.example.com/x"))
	require.NoError(t, err)

	snapshot, err := d.Snapshot()
	require.NoError(t, err)

	text := string(snapshot)
	assert.Less(t, strings.Index(text, `"content_length"`), strings.Index(text, `"created_at"`))
	assert.Less(t, strings.Index(text, `"created_at"`), strings.Index(text, `"slug"`))
	// percent decoding happened before the snapshot was taken
	assert.Contains(t, text, `"Screen shot.png"`)
}
