package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

// Storage keeps uploaded objects in the project.
type Storage struct {
	p    *Project
	auth *Auth
}

// Upload needs a signed-in client and overwrites an existing key.
func (s *Storage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if s.auth.AccessToken(ctx) == "" {
		return backend.ErrNotAuthenticated
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.objects[bucket+"/"+path] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.TrimRight(s.p.baseURL, "/") + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Functions dispatches invocations to the handlers registered on the project.
type Functions struct {
	p    *Project
	auth *Auth
}

func (f *Functions) Invoke(ctx context.Context, name string, body, out any) error {
	f.p.mu.Lock()
	h, ok := f.p.functions[name]
	f.p.mu.Unlock()
	if !ok {
		return &backend.APIError{Status: http.StatusNotFound, Code: "not_found", Message: "Function not found"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/functions/v1/"+url.PathEscape(name), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := f.auth.AccessToken(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	f.p.logger.Debugw("function invoked", "name", name, "status", rec.Code)

	if rec.Code < 200 || rec.Code > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(rec.Body.String())
		}
		return &backend.APIError{Status: rec.Code, Message: e.Error}
	}
	if out == nil || rec.Body.Len() == 0 {
		return nil
	}
	return json.Unmarshal(rec.Body.Bytes(), out)
}
