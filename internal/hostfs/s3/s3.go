// Package s3 is a hostfs.FS binding for session roots that live in an
// object store rather than a local mount. S3 has no true random-access
// write, so each open file is downloaded into an in-memory buffer on
// Open and the whole object is re-uploaded on Close/Sync, mirroring the
// read-modify-write pattern the teacher's own S3 content store uses for
// WriteAt.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sessionfs/sessionfs/internal/hostfs"
)

// Config configures the S3 hostfs.FS binding.
type Config struct {
	Bucket    string
	KeyPrefix string
	Endpoint  string // optional, for S3-compatible stores

	// Static credentials, used instead of the ambient credential chain
	// when set. Left empty to fall back to environment/shared-config/
	// instance-role credentials.
	AccessKeyID     string
	SecretAccessKey string
}

// FS is a hostfs.FS binding backed by an S3 bucket. Each hostfs path is
// mapped to an object key under KeyPrefix.
type FS struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an FS from either static credentials or the ambient AWS
// credential chain (environment, shared config, or EC2/ECS role), plus
// the given bucket configuration.
func New(ctx context.Context, cfg Config) (*FS, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &FS{client: client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}, nil
}

func (f *FS) key(p string) string {
	return path.Join(f.prefix, p)
}

// Open downloads the named object (if it exists) into memory and returns
// a handle whose Sync/Close re-uploads the buffer. If the object does
// not exist and CREATE was requested, Open returns an empty handle.
func (f *FS) Open(name string, flags hostfs.Flag, _ uint32) (hostfs.File, error) {
	ctx := context.Background()
	key := f.key(name)

	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	var data []byte
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			if flags&hostfs.CREATE == 0 {
				return nil, hostfs.ErrNotExist
			}
		} else {
			return nil, err
		}
	} else {
		defer result.Body.Close()
		data, err = io.ReadAll(result.Body)
		if err != nil {
			return nil, err
		}
		if flags&hostfs.CREATE != 0 && flags&hostfs.EXCL != 0 {
			return nil, os.ErrExist
		}
	}

	return &file{fs: f, key: key, data: data}, nil
}

type file struct {
	mu   sync.Mutex
	fs   *FS
	key  string
	data []byte
}

func (h *file) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off >= int64(len(h.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data[off:])
	if off+int64(n) >= int64(len(h.data)) && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *file) WriteAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[off:end], p)
	return len(p), nil
}

func (h *file) Truncate(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if size <= int64(len(h.data)) {
		h.data = h.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.data)
	h.data = grown
	return nil
}

// Sync uploads the current buffer to S3, overwriting the object.
func (h *file) Sync() error {
	h.mu.Lock()
	body := make([]byte, len(h.data))
	copy(body, h.data)
	h.mu.Unlock()

	_, err := h.fs.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(h.fs.bucket),
		Key:    aws.String(h.key),
		Body:   bytes.NewReader(body),
	})
	return err
}

func (h *file) Close() error {
	return h.Sync()
}
