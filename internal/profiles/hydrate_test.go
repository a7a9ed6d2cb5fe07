package profiles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory, pageSize keys per listing page.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	pageSize int
	getErr   map[string]error
	listErr  error
	listed   int
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range keys {
			if k == tok {
				start = i
				break
			}
		}
	}
	size := f.pageSize
	if size <= 0 {
		size = 1000
	}
	end := start + size
	if end > len(keys) {
		end = len(keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if err := f.getErr[key]; err != nil {
		return nil, err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing " + key)}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func newS3(t *testing.T, client S3API, prefix string) *S3Provider {
	t.Helper()
	return &S3Provider{
		Client:   client,
		Bucket:   "auth",
		Prefix:   prefix,
		CacheDir: t.TempDir(),
		Logger:   zerolog.Nop(),
	}
}

func TestS3Provider_DownloadsActiveProfilesAndKey(t *testing.T) {
	f := &fakeS3{pageSize: 1, objects: map[string]string{
		"team/active/a.json":    `{"a":1}`,
		"team/active/b.json":    `{"b":1}`,
		"team/active/readme.md": "skip",
		"team/inactive/c.json":  "{}",
		"team/key.txt":          "k1\n",
	}}
	p := newS3(t, f, "/team/")
	res, err := p.Hydrate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(p.CacheDir, "active"), res.ProfilesDir)
	assert.Equal(t, filepath.Join(p.CacheDir, "key.txt"), res.KeyFile)
	assert.GreaterOrEqual(t, f.listed, 3)

	ps, err := Discover(res.ProfilesDir)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].Name)
	b, err := os.ReadFile(ps[1].Path)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1}`, string(b))

	key, err := os.ReadFile(res.KeyFile)
	require.NoError(t, err)
	assert.Equal(t, "k1\n", string(key))
}

func TestS3Provider_ClearsStaleProfiles(t *testing.T) {
	f := &fakeS3{objects: map[string]string{"active/new.json": "{}"}}
	p := newS3(t, f, "")
	writeFile(t, filepath.Join(p.CacheDir, "active", "old.json"), "{}")

	res, err := p.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.KeyFile)

	ps, err := Discover(res.ProfilesDir)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "new", ps[0].Name)
}

func TestS3Provider_NoProfiles(t *testing.T) {
	f := &fakeS3{objects: map[string]string{"team/key.txt": "k"}}
	_, err := newS3(t, f, "team").Hydrate(context.Background())
	require.Error(t, err)
	assert.True(t, IsHydration(err))
	assert.Contains(t, err.Error(), "s3://auth/team/active/")
}

func TestS3Provider_KeyFetchFailure(t *testing.T) {
	f := &fakeS3{
		objects: map[string]string{"active/a.json": "{}", "key.txt": "k"},
		getErr:  map[string]error{"key.txt": &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}},
	}
	_, err := newS3(t, f, "").Hydrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key.txt")
}

func TestS3Provider_KeyNotFoundCodes(t *testing.T) {
	for _, code := range []string{"NoSuchKey", "NotFound", "404"} {
		t.Run(code, func(t *testing.T) {
			f := &fakeS3{
				objects: map[string]string{"active/a.json": "{}"},
				getErr:  map[string]error{"key.txt": &smithy.GenericAPIError{Code: code}},
			}
			res, err := newS3(t, f, "").Hydrate(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.KeyFile)
		})
	}
}

func TestS3Provider_ListError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeS3{listErr: boom}
	_, err := newS3(t, f, "x").Hydrate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&s3types.NoSuchKey{}))
	assert.False(t, isNotFound(errors.New("plain")))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "SlowDown"}))
}
