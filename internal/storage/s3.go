// Package storage keeps profile avatars in S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxAvatarBytes bounds an uploaded avatar.
const MaxAvatarBytes = 5 << 20

const defaultURLExpiry = time.Hour

// Avatars stores objects in a single bucket and hands out presigned GET links.
type Avatars struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func NewAvatars(client *s3.Client, bucket string) *Avatars {
	return &Avatars{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  defaultURLExpiry,
	}
}

func (a *Avatars) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxAvatarBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read avatar: %w", err)
	}
	if len(data) > MaxAvatarBytes {
		return types.Errorf(types.KindValidation, "avatar exceeds %d bytes", MaxAvatarBytes)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (a *Avatars) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned GET link valid for one hour.
func (a *Avatars) URL(ctx context.Context, key string) (string, error) {
	out, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = a.expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return out.URL, nil
}
