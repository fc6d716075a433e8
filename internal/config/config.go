// Package config handles shotdiff configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

var validate = validator.New()

type Config struct {
	BaselineDir string `yaml:"baseline_dir" validate:"required,nefield=ActualDir"`
	ActualDir   string `yaml:"actual_dir" validate:"required"`
	Threshold   int    `yaml:"threshold" validate:"min=0"`
	UpdateMode  bool   `yaml:"update_snapshots"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
	LogFile   string `yaml:"log_file"` // appended to in addition to stderr when set

	HTTPAddr string `yaml:"http_addr" validate:"required"`

	Browser        string  `yaml:"browser" validate:"oneof=chromium firefox webkit"`
	Headless       bool    `yaml:"headless"`
	ViewportWidth  int     `yaml:"viewport_width" validate:"min=1"`
	ViewportHeight int     `yaml:"viewport_height" validate:"min=1"`
	CaptureTimeout float64 `yaml:"capture_timeout" validate:"gt=0"` // seconds
	Concurrency    int     `yaml:"concurrency" validate:"min=1"`

	ArtifactBucket    string `yaml:"artifact_bucket"`
	ArtifactPrefix    string `yaml:"artifact_prefix"`
	S3Endpoint        string `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3Region          string `yaml:"s3_region"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3PathStyle       bool   `yaml:"s3_path_style"`
}

func Load() *Config {
	return &Config{
		BaselineDir:       getEnv("SHOTDIFF_BASELINE_DIR", "screenshots/baseline"),
		ActualDir:         getEnv("SHOTDIFF_ACTUAL_DIR", "screenshots/actual"),
		Threshold:         getEnvInt("SHOTDIFF_THRESHOLD", 5),
		UpdateMode:        getEnvBool("SHOTDIFF_UPDATE", false),
		LogLevel:          getEnv("SHOTDIFF_LOG_LEVEL", "info"),
		LogFormat:         getEnv("SHOTDIFF_LOG_FORMAT", "text"),
		LogFile:           getEnv("SHOTDIFF_LOG_FILE", ""),
		HTTPAddr:          getEnv("SHOTDIFF_HTTP_ADDR", ":8000"),
		Browser:           getEnv("SHOTDIFF_BROWSER", "chromium"),
		Headless:          getEnvBool("SHOTDIFF_HEADLESS", true),
		ViewportWidth:     getEnvInt("SHOTDIFF_VIEWPORT_WIDTH", 1280),
		ViewportHeight:    getEnvInt("SHOTDIFF_VIEWPORT_HEIGHT", 800),
		CaptureTimeout:    getEnvFloat("SHOTDIFF_CAPTURE_TIMEOUT", 10.0),
		Concurrency:       getEnvInt("SHOTDIFF_CONCURRENCY", 4),
		ArtifactBucket:    getEnv("SHOTDIFF_ARTIFACT_BUCKET", ""),
		ArtifactPrefix:    getEnv("SHOTDIFF_ARTIFACT_PREFIX", "shotdiff"),
		S3Endpoint:        getEnv("SHOTDIFF_S3_ENDPOINT", ""),
		S3Region:          getEnv("SHOTDIFF_S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("SHOTDIFF_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("SHOTDIFF_S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:       getEnvBool("SHOTDIFF_S3_PATH_STYLE", false),
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse config file %s", path)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "invalid configuration")
	}
	return checkRoots(c.BaselineDir, c.ActualDir)
}

// checkRoots rejects baseline and actual roots that resolve to the same
// directory or nest inside one another.
func checkRoots(baseline, actual string) error {
	b, err := filepath.Abs(baseline)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "resolve baseline_dir")
	}
	a, err := filepath.Abs(actual)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "resolve actual_dir")
	}
	if within(b, a) || within(a, b) {
		return apperrors.New(apperrors.CodeConfigInvalid, "baseline_dir and actual_dir must be separate directories").
			WithMetadata("baseline_dir", b).
			WithMetadata("actual_dir", a)
	}
	return nil
}

// within reports whether path equals root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ArtifactsEnabled reports whether review bundles should be uploaded.
func (c *Config) ArtifactsEnabled() bool {
	return c.ArtifactBucket != ""
}

func (c *Config) String() string {
	return fmt.Sprintf("baseline=%s actual=%s threshold=%d update=%t",
		c.BaselineDir, c.ActualDir, c.Threshold, c.UpdateMode)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1"
	}
	return def
}
