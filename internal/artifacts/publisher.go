package artifacts

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
)

// StoreConfig locates the bucket review bundles are uploaded to.
type StoreConfig struct {
	// Endpoint overrides the S3 endpoint for S3-compatible stores. Empty uses AWS.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	// UsePathStyle is required by most self-hosted stores.
	UsePathStyle bool
}

// Location names the uploaded objects of one run.
type Location struct {
	Bucket    string `json:"bucket"`
	BundleKey string `json:"bundle_key"`
	ReportKey string `json:"report_key"`
}

// Publisher uploads run artifacts to object storage.
type Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// NewPublisher builds an S3 client from cfg.
func NewPublisher(ctx context.Context, cfg StoreConfig, log *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "artifact bucket is not configured")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "load AWS config")
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewPublisherFromClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewPublisherFromClient wraps an existing S3 client.
func NewPublisherFromClient(client *s3.Client, bucket, prefix string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}
}

// Keys returns the object keys used for runID.
func (p *Publisher) Keys(runID string) Location {
	base := path.Join(p.prefix, runID)
	return Location{
		Bucket:    p.bucket,
		BundleKey: path.Join(base, BundleName),
		ReportKey: path.Join(base, ReportName),
	}
}

// Publish uploads the report and its review bundle under <prefix>/<run-id>/.
func (p *Publisher) Publish(ctx context.Context, report *runner.Report) (Location, error) {
	loc := p.Keys(report.RunID)

	bundle, err := BundleBytes(report)
	if err != nil {
		return loc, err
	}
	summary, err := yaml.Marshal(report)
	if err != nil {
		return loc, apperrors.Wrap(err, apperrors.CodeInternal, "encode report")
	}

	if err := p.put(ctx, loc.BundleKey, bundle, "application/zstd"); err != nil {
		return loc, err
	}
	if err := p.put(ctx, loc.ReportKey, summary, "application/yaml"); err != nil {
		return loc, err
	}

	p.log.Info("artifacts published", "bucket", p.bucket, "bundle", loc.BundleKey, "bytes", len(bundle))
	return loc, nil
}

func (p *Publisher) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeUnavailable, "upload %s", key).
			WithMetadata("bucket", p.bucket)
	}
	return nil
}
