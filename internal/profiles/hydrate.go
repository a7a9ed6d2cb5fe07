package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"slotd/internal/config"
	"slotd/pkg/types"
)

// Backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Result describes hydrated auth material on local disk.
type Result struct {
	ProfilesDir string `json:"profiles_dir"`
	// KeyFile is the optional newline-delimited API key list, empty if absent.
	KeyFile string `json:"key_file,omitempty"`
}

// Provider stages profiles into a local directory.
type Provider interface {
	Hydrate(ctx context.Context) (Result, error)
}

// LocalProvider reads profiles from an existing directory. A key.txt next to
// the directory is reported as the key file.
type LocalProvider struct {
	Dir string
}

func (p LocalProvider) Hydrate(ctx context.Context) (Result, error) {
	dir, err := ExpandHome(p.Dir)
	if err != nil {
		return Result{}, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Result{}, hydrationError{msg: "profile directory does not exist: " + abs}
	}
	if !fi.IsDir() {
		return Result{}, hydrationError{msg: "profile path is not a directory: " + abs}
	}
	res := Result{ProfilesDir: abs}
	if key := filepath.Join(filepath.Dir(abs), "key.txt"); fileExists(key) {
		res.KeyFile = key
	}
	return res, nil
}

// S3API is the subset of the S3 client used for hydration.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Provider downloads <prefix>/active/*.json and the optional <prefix>/key.txt
// into CacheDir. CacheDir/active is emptied first so no stale profile survives.
type S3Provider struct {
	Client   S3API
	Bucket   string
	Prefix   string
	CacheDir string
	Logger   zerolog.Logger
}

// NewS3Provider builds a provider backed by the default AWS credential chain.
func NewS3Provider(ctx context.Context, bucket, prefix, region, cacheDir string, log zerolog.Logger) (*S3Provider, error) {
	if bucket == "" {
		return nil, hydrationError{msg: "s3 bucket is required for the s3 backend"}
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Provider{
		Client:   s3.NewFromConfig(awsCfg),
		Bucket:   bucket,
		Prefix:   prefix,
		CacheDir: cacheDir,
		Logger:   log,
	}, nil
}

func joinKey(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, "/")
}

func (p *S3Provider) Hydrate(ctx context.Context) (Result, error) {
	if p.Bucket == "" {
		return Result{}, hydrationError{msg: "s3 bucket is required for the s3 backend"}
	}
	cache, err := ExpandHome(p.CacheDir)
	if err != nil {
		return Result{}, err
	}
	cache, err = filepath.Abs(cache)
	if err != nil {
		return Result{}, fmt.Errorf("abs path: %w", err)
	}
	target := filepath.Join(cache, "active")
	if err := cleanDir(target); err != nil {
		return Result{}, hydrationError{msg: "prepare cache dir", err: err}
	}

	activePrefix := joinKey(p.Prefix, "active") + "/"
	p.Logger.Info().Str("bucket", p.Bucket).Str("prefix", activePrefix).Str("cache_dir", cache).Msg("hydrating profiles from s3")

	downloaded := 0
	pager := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.Bucket),
		Prefix: aws.String(activePrefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return Result{}, hydrationError{msg: "list s3://" + p.Bucket + "/" + activePrefix, err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			if err := p.download(ctx, key, filepath.Join(target, path.Base(key))); err != nil {
				return Result{}, hydrationError{msg: "fetch s3://" + p.Bucket + "/" + key, err: err}
			}
			downloaded++
		}
	}
	if downloaded == 0 {
		return Result{}, hydrationError{msg: "no auth profiles found under s3://" + p.Bucket + "/" + activePrefix}
	}

	res := Result{ProfilesDir: target}
	keyKey := joinKey(p.Prefix, "key.txt")
	keyPath := filepath.Join(cache, "key.txt")
	switch err := p.download(ctx, keyKey, keyPath); {
	case err == nil:
		res.KeyFile = keyPath
	case isNotFound(err):
		_ = os.Remove(keyPath)
	default:
		return Result{}, hydrationError{msg: "fetch s3://" + p.Bucket + "/" + keyKey, err: err}
	}
	p.Logger.Info().Int("profiles", downloaded).Bool("key_file", res.KeyFile != "").Msg("profiles hydrated")
	return res, nil
}

// download writes the object at key to dst via a temp file and rename.
func (p *S3Provider) download(ctx context.Context, key, dst string) error {
	out, err := p.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("read object body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

// cleanDir empties dir, creating it if needed.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o700)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// NewProvider selects a provider for the configured backend.
func NewProvider(ctx context.Context, pc config.ProfilesConfig, log zerolog.Logger) (Provider, error) {
	switch strings.ToLower(pc.Backend) {
	case "", BackendLocal:
		return LocalProvider{Dir: pc.Dir}, nil
	case BackendS3:
		return NewS3Provider(ctx, pc.S3Bucket, pc.S3Prefix, pc.S3Region, pc.CacheDir, log)
	default:
		return nil, hydrationError{msg: fmt.Sprintf("unsupported profile backend %q", pc.Backend)}
	}
}

// Load hydrates profiles with the configured backend and discovers them.
func Load(ctx context.Context, pc config.ProfilesConfig, log zerolog.Logger) ([]types.Profile, Result, error) {
	prov, err := NewProvider(ctx, pc, log)
	if err != nil {
		return nil, Result{}, err
	}
	res, err := prov.Hydrate(ctx)
	if err != nil {
		return nil, Result{}, err
	}
	ps, err := Discover(res.ProfilesDir)
	if err != nil {
		return nil, Result{}, err
	}
	log.Info().Int("profiles", len(ps)).Str("backend", pc.Backend).Str("dir", res.ProfilesDir).Msg("profiles discovered")
	return ps, res, nil
}
