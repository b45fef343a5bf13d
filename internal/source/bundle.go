package source

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// S3API is the subset of the S3 client used to download bundles.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SSMAPI is the subset of the SSM client used to read the current hash.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type BundleOptions struct {
	Logger log.Logger

	// SSM parameter containing the bundle SHA256 hash
	SSMParam string

	// S3 location for bundles: s3://{bucket}/{prefix}/{hash}.tar.gz
	S3Bucket string
	S3Prefix string

	// AWS config (uses default if nil)
	AWSConfig *aws.Config

	// Clients override the ones built from AWSConfig.
	S3Client  S3API
	SSMClient SSMAPI
}

// Bundle serves content from hash-addressed tar.gz bundles in S3. The hash
// of the bundle to serve is read from an SSM parameter, so publishing new
// content is an upload followed by a parameter update.
type Bundle struct {
	opts      BundleOptions
	s3Client  S3API
	ssmClient SSMAPI
	logger    log.Logger

	// last extracted bundle, so Open for an unchanged hash skips the download
	mu       sync.Mutex
	lastHash string
	lastFS   fs.FS
}

// NewBundle creates a bundle source with the given options.
func NewBundle(ctx context.Context, opts BundleOptions) (*Bundle, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	s3c, ssmc := opts.S3Client, opts.SSMClient
	if s3c == nil || ssmc == nil {
		var awsCfg aws.Config
		if opts.AWSConfig != nil {
			awsCfg = *opts.AWSConfig
		} else {
			var err error
			awsCfg, err = config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, xerrors.Wrap(err, "load AWS config")
			}
		}
		if s3c == nil {
			s3c = s3.NewFromConfig(awsCfg)
		}
		if ssmc == nil {
			ssmc = ssm.NewFromConfig(awsCfg)
		}
	}

	return &Bundle{
		opts:      opts,
		s3Client:  s3c,
		ssmClient: ssmc,
		logger:    opts.Logger,
	}, nil
}

func (b *Bundle) Kind() content.SourceKind { return content.SourceBundle }

// Fingerprint returns the bundle hash currently published in SSM.
func (b *Bundle) Fingerprint(ctx context.Context) (string, error) {
	out, err := b.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(b.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", b.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", b.opts.SSMParam)
	}

	hash := strings.ToLower(strings.TrimSpace(*out.Parameter.Value))
	if hash == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", b.opts.SSMParam)
	}
	if !cryptoutil.IsSHA256Hex(hash) {
		return "", xerrors.Newf("SSM parameter %s does not hold a sha256 hash", b.opts.SSMParam)
	}

	return hash, nil
}

// s3Key returns the S3 object key for a given hash
func (b *Bundle) s3Key(hash string) string {
	if b.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", strings.TrimSuffix(b.opts.S3Prefix, "/"), hash)
	}
	return fmt.Sprintf("%s.tar.gz", hash)
}

// Open downloads the bundle with the given hash, verifies it and extracts
// it into memory.
func (b *Bundle) Open(ctx context.Context, hash string) (fs.FS, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastFS != nil && cryptoutil.HashEqual(b.lastHash, hash) {
		return b.lastFS, nil
	}

	key := b.s3Key(hash)
	b.logger.Info(ctx, "downloading content bundle",
		"bucket", b.opts.S3Bucket,
		"key", key,
	)

	out, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get S3 object s3://%s/%s", b.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	data, actual, err := readWithHash(out.Body, maxBundleSize)
	if err != nil {
		return nil, xerrors.Wrap(err, "download bundle")
	}
	if !cryptoutil.HashEqual(actual, hash) {
		return nil, xerrors.Newf("checksum mismatch: expected %s, got %s", hash, actual)
	}

	fsys, err := extractTarGzToMem(data, defaultLimits)
	if err != nil {
		return nil, xerrors.Wrap(err, "extract bundle")
	}

	b.logger.Info(ctx, "extracted content bundle",
		"hash", hash,
		"bytes", len(data),
	)

	b.lastHash, b.lastFS = hash, fsys
	return fsys, nil
}
