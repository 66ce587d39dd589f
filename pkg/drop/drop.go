package drop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TypeBookmark drops carry a redirect target instead of content.
const TypeBookmark = "bookmark"

const downloadBufferSize = 8192

// Session is the borrowed HTTP capability a Drop uses for its own
// requests. The Drop never owns the session and must not outlive it.
type Session interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// RetrievalError reports a non-OK status while fetching drop metadata.
type RetrievalError struct {
	URL        string
	StatusCode int
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("received %d attempting to retrieve drop metadata from %s", e.StatusCode, e.URL)
}

// Drop is one uploaded or shortened-link entity of the remote account.
// It is fully hydrated at construction; all typed fields are derived
// from the raw record snapshot, which is retained for persistence.
type Drop struct {
	ID   int64  // Remote-assigned integer identifier.
	Type string // image, bookmark, text, archive, audio, video or unknown.
	Slug string // URL-safe short identifier, primary lookup key.

	Name     string // Current display name.
	Original string // Original uploaded file name, percent-decoded.
	Target   string // Redirect URI for bookmarks.
	Content  string // Content URI otherwise.

	Size      int64 // Declared size in bytes, 0 when unknown.
	Views     int64
	Uploaded  time.Time
	Favourite bool

	// Enumeration context, set only when produced by bulk listing.
	Index int
	Total int

	stats   string
	raw     map[string]interface{}
	session Session
}

// Fetch constructs a Drop by identifier: it retrieves the detail
// record from the given URL and normalizes it. A non-OK response is
// reported as *RetrievalError carrying the observed status code.
func Fetch(ctx context.Context, session Session, detailURL string) (*Drop, error) {
	response, err := session.Get(ctx, detailURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get drop metadata")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &RetrievalError{URL: detailURL, StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read drop metadata")
	}

	record := map[string]interface{}{}
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, errors.Wrap(err, "failed to decode drop metadata")
	}

	return FromRecord(session, record)
}

// FromRecord constructs a Drop from a raw record already obtained from
// a listing page, skipping the network fetch.
func FromRecord(session Session, record map[string]interface{}) (*Drop, error) {
	d := &Drop{session: session}
	if err := d.apply(record); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Drop) String() string {
	flag := ""
	if d.Favourite {
		flag = "* "
	}
	return fmt.Sprintf("Drop(%s%s, %s, %q, size=%d, uploaded=%s)",
		flag, d.Slug, d.Type, d.Original, d.Size, d.Uploaded.Format(time.RFC3339))
}

// StoragePath is the deterministic relative path a drop is saved
// under: {year}/{month}/{day}/{id}--{slug}--{type}--{original} with
// unpadded month and day.
func (d *Drop) StoragePath() string {
	return fmt.Sprintf("%d/%d/%d/%d--%s--%s--%s",
		d.Uploaded.Year(), int(d.Uploaded.Month()), d.Uploaded.Day(),
		d.ID, d.Slug, d.Type, d.Original)
}

// Snapshot returns the metadata snapshot bytes: the raw record,
// key-sorted and pretty-printed. The bytes are identical across runs
// for unchanged remote data.
func (d *Drop) Snapshot() ([]byte, error) {
	return EncodeRecord(d.raw)
}

// EncodeRecord serializes a raw record deterministically, with sorted
// keys and four-space indentation.
func EncodeRecord(record map[string]interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode record")
	}
	return data, nil
}

// Save persists the drop below path, or below StoragePath relative to
// the working directory when path is empty:
//
//   - <path>.info.json    metadata snapshot, always overwritten
//   - <path>.webloc       bookmarks only, binary plist {URL: target}
//   - <path>              downloaded content otherwise
//
// The content download is skipped when the file already exists with
// the declared size, making re-runs idempotent. The content or webloc
// file's timestamps are set to the upload time.
func (d *Drop) Save(ctx context.Context, path string) error {
	if path == "" {
		path = d.StoragePath()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "failed to resolve storage path")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return errors.Wrap(err, "failed to create storage directory")
	}

	snapshot, err := d.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(target+".info.json", snapshot, 0600); err != nil {
		return errors.Wrap(err, "failed to write metadata snapshot")
	}

	if d.Type == TypeBookmark {
		target += ".webloc"
		if err := writeWebloc(target, d.Target); err != nil {
			return err
		}
	} else if d.needsDownload(target) {
		if err := d.download(ctx, target); err != nil {
			return err
		}
	}

	uploaded := d.Uploaded.Local()
	if err := os.Chtimes(target, uploaded, uploaded); err != nil {
		return errors.Wrap(err, "failed to set file times")
	}
	return nil
}

// needsDownload reports whether the content file is absent or differs
// from the declared size. An unknown size never forces a re-download.
func (d *Drop) needsDownload(target string) bool {
	info, err := os.Stat(target)
	if err != nil {
		return true
	}
	return d.Size > 0 && info.Size() != d.Size
}

func (d *Drop) download(ctx context.Context, target string) error {
	response, err := d.session.Get(ctx, d.Content)
	if err != nil {
		return errors.Wrap(err, "failed to get drop content")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return errors.Errorf("bad response code %d downloading drop content from %s", response.StatusCode, d.Content)
	}

	out, err := os.Create(target)
	if err != nil {
		return errors.Wrap(err, "failed to create content file")
	}

	_, err = io.CopyBuffer(out, response.Body, make([]byte, downloadBufferSize))
	if errClose := out.Close(); err == nil {
		err = errClose
	}
	return errors.Wrap(err, "failed to write content file")
}

// apply runs the normalizer contract over a raw record: the
// pre-processing pass first, then the field mapping table, leaving
// unmapped fields untouched in the snapshot.
func (d *Drop) apply(record map[string]interface{}) error {
	if err := preprocess(record); err != nil {
		return err
	}
	d.raw = record

	for _, m := range fieldMappings {
		d.assign(m.target, pick(record, m.origins))
	}
	return nil
}

func (d *Drop) assign(target string, value interface{}) {
	switch target {
	case "id":
		d.ID = asInt(value)
	case "slug":
		d.Slug = asString(value)
	case "uploaded":
		if t, ok := value.(time.Time); ok {
			d.Uploaded = t
		} else {
			d.Uploaded = time.Time{}
		}
	case "type":
		d.Type = asString(value)
	case "name":
		d.Name = asString(value)
	case "target":
		d.Target = asString(value)
	case "original":
		d.Original = asString(value)
	case "views":
		d.Views = asInt(value)
	case "content":
		d.Content = asString(value)
	case "stats":
		d.stats = asString(value)
	case "size":
		d.Size = asInt(value)
	case "favourite":
		d.Favourite = asBool(value)
	}
}
