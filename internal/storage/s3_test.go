package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method      string
	path        string
	contentType string
}

type recorder struct {
	calls []call
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
	}
	r.calls = append(r.calls, call{method: req.Method, path: req.URL.Path, contentType: req.Header.Get("Content-Type")})

	status := http.StatusOK
	if req.Method == http.MethodDelete {
		status = http.StatusNoContent
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {"\"etag\""}},
		Request:    req,
	}, nil
}

func newAvatars(rt http.RoundTripper) *Avatars {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
		HTTPClient:   &http.Client{Transport: rt},
		UsePathStyle: true,
		BaseEndpoint: aws.String("https://s3.test"),
	})
	return NewAvatars(client, "avatars-bucket")
}

func TestPutAndDelete(t *testing.T) {
	rt := &recorder{}
	a := newAvatars(rt)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "avatars/u1/1.png", "image/png", strings.NewReader("png")))
	require.NoError(t, a.Delete(ctx, "avatars/u1/1.png"))

	require.Len(t, rt.calls, 2)
	assert.Equal(t, http.MethodPut, rt.calls[0].method)
	assert.Equal(t, "/avatars-bucket/avatars/u1/1.png", rt.calls[0].path)
	assert.Equal(t, "image/png", rt.calls[0].contentType)
	assert.Equal(t, http.MethodDelete, rt.calls[1].method)
}

func TestPutRejectsOversizedAvatar(t *testing.T) {
	rt := &recorder{}
	a := newAvatars(rt)

	err := a.Put(context.Background(), "k", "image/png", bytes.NewReader(make([]byte, MaxAvatarBytes+1)))
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Empty(t, rt.calls)
}

func TestURLIsPresigned(t *testing.T) {
	rt := &recorder{}
	a := newAvatars(rt)

	url, err := a.URL(context.Background(), "avatars/u1/1.png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://s3.test/avatars-bucket/avatars/u1/1.png?"))
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Empty(t, rt.calls)
}
