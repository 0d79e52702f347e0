package apptest

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/service"
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PNG is the smallest body mimetype detects as image/png
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// Objects is an in-memory bucket. Only single part uploads work.
type Objects struct {
	manager.UploadAPIClient

	mu      sync.Mutex
	objects map[string][]byte
}

func (o *Objects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (o *Objects) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(o.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (o *Objects) Has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.objects[key]
	return ok
}

func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.objects)
}

// WithStorage gives d an uploader backed by a fresh in-memory bucket
func WithStorage(d *internal.Deps) *Objects {
	o := &Objects{objects: map[string][]byte{}}
	d.Uploader = service.NewObjectUploader(o, aws.String("bucket"), func(key string) string {
		return "https://cdn.example.com/" + key
	})
	return o
}

// Upload sends content as the multipart "file" field
func Upload(e http.Handler, method, path, filename string, content []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filename)
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}
