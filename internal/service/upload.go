package service

import (
	"bitwise74/storefront-api/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// S3 can delete at most 1000 objects in one batch request
const deleteBatchSize = 1000

var ErrStorageDisabled = errors.New("object storage is disabled")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectAPI is the subset of *s3.Client used for uploads
type ObjectAPI interface {
	manager.UploadAPIClient
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Uploader struct {
	api    ObjectAPI
	bucket *string
	url    func(string) string
}

type UploadedObject struct {
	Key string
	URL string
}

// NewUploader returns nil when storage is disabled. All methods are safe to
// call on a nil Uploader.
func NewUploader(c *storage.Client) *Uploader {
	if c == nil {
		return nil
	}

	return NewObjectUploader(c.C, c.Bucket, c.URL)
}

// NewObjectUploader uploads through any S3 compatible api. url maps an
// object key to its public address.
func NewObjectUploader(api ObjectAPI, bucket *string, url func(key string) string) *Uploader {
	return &Uploader{
		api:    api,
		bucket: bucket,
		url:    url,
	}
}

// Upload stores an already validated image under dir and returns its key
func (u *Uploader) Upload(ctx context.Context, body io.Reader, size int64, mime, dir string) (*UploadedObject, error) {
	if u == nil {
		return nil, ErrStorageDisabled
	}

	id, err := gonanoid.New(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate object key, %w", err)
	}

	key := path.Join(dir, id+extensions[mime])

	uploader := manager.NewUploader(u.api, func(u *manager.Uploader) {
		u.Concurrency = 3
		u.PartSize = 6 << 20
	})

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        u.bucket,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(mime),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object, %w", err)
	}

	zap.L().Debug("Object uploaded", zap.String("key", key), zap.Int64("size", size))

	return &UploadedObject{
		Key: key,
		URL: u.url(key),
	}, nil
}

// Delete removes objects in batches. Empty keys are skipped.
func (u *Uploader) Delete(ctx context.Context, keys ...string) error {
	if u == nil {
		return nil
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
	}

	var errs []error

	for start := 0; start < len(objects); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(objects))

		out, err := u.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: u.bucket,
			Delete: &types.Delete{
				Objects: objects[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		// Quiet mode only reports the objects that failed
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("failed to delete %s, %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
	}

	return errors.Join(errs...)
}
