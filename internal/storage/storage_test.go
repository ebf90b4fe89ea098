package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func TestLocalProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := NewLocalProvider(root)

	if err := p.Put(ctx, "blobs/abc", bytes.NewReader([]byte("hello")), "audio/mpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}

	ok, err := p.Exists(ctx, "blobs/abc")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	obj, err := p.Get(ctx, "blobs/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	if string(data) != "hello" || obj.ContentLength != 5 {
		t.Errorf("get = %q (%d bytes)", data, obj.ContentLength)
	}

	if _, err := p.Get(ctx, "blobs/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing err = %v, want ErrNotFound", err)
	}
}

func TestLocalProviderStaysInRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	p := NewLocalProvider(root)

	if err := p.Put(ctx, "../../escape", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent, "escape")); !os.IsNotExist(err) {
		t.Error("key escaped the provider root")
	}
	if _, err := os.Stat(filepath.Join(root, "escape")); err != nil {
		t.Errorf("object not stored under root: %v", err)
	}
}

// fakeS3 keeps objects in memory and implements only what S3Provider calls.
type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.StringValue(in.Key)]; !ok {
		return nil, awserr.New("NotFound", "missing", nil)
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Provider(t *testing.T) {
	ctx := context.Background()
	p := NewS3Provider(&fakeS3{objects: map[string][]byte{}}, "jukebox")

	if _, err := p.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing err = %v, want ErrNotFound", err)
	}
	if ok, err := p.Exists(ctx, "nope"); ok || err != nil {
		t.Errorf("exists missing = %v, %v", ok, err)
	}

	if err := p.Put(ctx, "blobs/x", bytes.NewReader([]byte("tune")), "audio/mpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	obj, err := p.Get(ctx, "blobs/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "tune" {
		t.Errorf("body = %q", data)
	}
}
