// Package avatar turns a picked image reference into the URL stored on a
// user row, uploading local files to storage.
package avatar

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

const (
	Bucket = "user-images"
	// DefaultImage is the placeholder avatar used by the admin screens.
	DefaultImage = "https://cdn-icons-png.flaticon.com/512/149/149071.png"
)

// Policy is what Resolve returns when there is no image to use.
type Policy struct {
	// WhenAbsent is used for an empty reference.
	WhenAbsent string
	// OnFailure is used when reading or uploading a local file fails.
	OnFailure string
}

var (
	// AdminPolicy falls back to the placeholder image.
	AdminPolicy = Policy{WhenAbsent: DefaultImage, OnFailure: DefaultImage}
	// SelfPolicy leaves the image empty.
	SelfPolicy = Policy{}
)

// Uploader resolves image references against a storage bucket.
type Uploader struct {
	storage  backend.Storage
	logger   *zap.SugaredLogger
	now      func() time.Time
	readFile func(name string) ([]byte, error)
}

type Option func(*Uploader)

func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

// WithReader replaces os.ReadFile for local references.
func WithReader(read func(name string) ([]byte, error)) Option {
	return func(u *Uploader) { u.readFile = read }
}

func NewUploader(storage backend.Storage, logger *zap.SugaredLogger, opts ...Option) *Uploader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	u := &Uploader{storage: storage, logger: logger, now: time.Now, readFile: os.ReadFile}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Resolve returns the URL to store for ref:
//   - "" gives p.WhenAbsent;
//   - an http(s) URL is returned as is;
//   - anything else is read as a local file, uploaded under a new key and
//     replaced by its public URL.
//
// When the upload fails Resolve returns p.OnFailure together with the error,
// so the caller can report it and still save the row.
func (u *Uploader) Resolve(ctx context.Context, ref string, p Policy) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return p.WhenAbsent, nil
	}
	if IsRemote(ref) {
		return ref, nil
	}

	name := localPath(ref)
	data, err := u.readFile(name)
	if err != nil {
		u.logger.Warnw("read image failed", "ref", ref, "err", err)
		return p.OnFailure, fmt.Errorf("read image: %w", err)
	}
	key := Key(name, u.now())
	if err := u.storage.Upload(ctx, Bucket, key, data, ContentType(name)); err != nil {
		u.logger.Warnw("upload image failed", "key", key, "err", err)
		return p.OnFailure, err
	}
	u.logger.Debugw("image uploaded", "key", key, "bytes", len(data))
	return u.storage.PublicURL(Bucket, key), nil
}

// IsRemote reports whether ref is already a URL that needs no upload.
func IsRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Key is the storage key for a file uploaded at t: avatars/<unix-ms>.<ext>.
func Key(name string, t time.Time) string {
	return fmt.Sprintf("avatars/%d.%s", t.UnixMilli(), extension(name))
}

// ContentType guesses the image type from the file extension.
func ContentType(name string) string {
	switch extension(name) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}

func localPath(ref string) string {
	if !strings.HasPrefix(ref, "file://") {
		return ref
	}
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		return u.Path
	}
	return strings.TrimPrefix(ref, "file://")
}
