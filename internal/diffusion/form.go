package diffusion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// modelField adds a model form field to multipart requests before handing
// them to next. The client library only routes the edit model through the
// URL, which the public endpoint ignores.
type modelField struct {
	next  openai.HTTPDoer
	model string
}

func (m modelField) Do(req *http.Request) (*http.Response, error) {
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || req.Body == nil {
		return m.next.Do(req)
	}
	body, contentType, err := withField(req.Body, params["boundary"], "model", m.model)
	if err != nil {
		return nil, fmt.Errorf("adding model field: %w", err)
	}
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	out.ContentLength = int64(len(body))
	out.Header.Set("Content-Type", contentType)
	return m.next.Do(out)
}

// withField copies a multipart body and sets the named field, replacing
// any part already carrying that name.
func withField(r io.ReadCloser, boundary, name, value string) ([]byte, string, error) {
	defer r.Close()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	mr := multipart.NewReader(r, boundary)
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", err
		}
		if p.FormName() == name {
			continue
		}
		dst, err := w.CreatePart(p.Header)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(dst, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField(name, value); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
