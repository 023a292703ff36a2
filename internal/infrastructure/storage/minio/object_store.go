package minio

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/KinKeep/pkg/errors"
)

// readObject is a variable to allow stubbing the streaming read in tests;
// *minio.Object cannot be constructed outside minio-go.
var readObject = func(ctx context.Context, api ObjectAPI, bucket, name string) ([]byte, error) {
	obj, err := api.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Get reads the object <prefix><key>.json.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	name := c.objectName(key + ".json")
	if _, err := c.api.StatObject(ctx, c.cfg.Bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "object not found").WithDetail(name)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to stat object").WithDetail(name)
	}
	raw, err := readObject(ctx, c.api, c.cfg.Bucket, name)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "object not found").WithDetail(name)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read object").WithDetail(name)
	}
	return raw, nil
}

// Put overwrites the object <prefix><key>.json.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	name := c.objectName(key + ".json")
	_, err := c.api.PutObject(ctx, c.cfg.Bucket, name, bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write object").WithDetail(name)
	}
	return nil
}

// Upload stores an exported file under exports/ and returns a presigned
// download URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if c.isClosed() {
		return "", ErrClientClosed
	}
	name := c.objectName(path.Join("exports", filename))
	if _, err := c.api.PutObject(ctx, c.cfg.Bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload export").WithDetail(name)
	}
	u, err := c.api.PresignedGetObject(ctx, c.cfg.Bucket, name, c.cfg.PresignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign export").WithDetail(name)
	}
	return u.String(), nil
}
