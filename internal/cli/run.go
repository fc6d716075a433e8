package cli

import (
	"bytes"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/shotdiff/internal/artifacts"
	"github.com/GriffinCanCode/shotdiff/internal/capture"
	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/suite"
)

type runFlags struct {
	suitePath  string
	capture    bool
	bundlePath string
	reportPath string
	publish    bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture and compare every target in a suite",
		Long: `Runs a suite manifest. With --capture each target is screenshotted in a
headless browser before comparison; without it the captures already in the
actual directory are compared.

Failing screenshots can be packaged with --bundle and uploaded to the
configured artifact bucket with --publish.`,
		Example: `  shotdiff run --suite suite.yaml --capture
  shotdiff run --suite suite.yaml --bundle review.tar.zst --publish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := suite.Load(f.suitePath)
			if err != nil {
				return usageError(err)
			}

			opts := runner.Options{}
			if f.capture {
				c, err := a.capturer()
				if err != nil {
					return usageError(err)
				}
				defer func() { _ = c.Close() }()
				opts.Capturer = c
			}

			report, err := a.runner(opts).Run(cmd.Context(), s)
			if err != nil {
				return usageError(err)
			}
			printReport(cmd.OutOrStdout(), report)

			if err := a.writeOutputs(cmd, f, report); err != nil {
				return usageError(err)
			}
			return reportExit(report)
		},
	}

	cmd.Flags().StringVarP(&f.suitePath, "suite", "s", "", "suite manifest (YAML)")
	cmd.Flags().BoolVar(&f.capture, "capture", false, "capture screenshots with a browser before comparing")
	cmd.Flags().StringVar(&f.bundlePath, "bundle", "", "write a review bundle of failing screenshots to this path")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "write the run report as YAML to this path")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "upload the review bundle to the artifact bucket")
	_ = cmd.MarkFlagRequired("suite")

	return cmd
}

func (a *app) capturer() (*capture.PlaywrightCapturer, error) {
	return capture.NewPlaywrightCapturer(capture.Options{
		Browser:        a.cfg.Browser,
		Headless:       a.cfg.Headless,
		ViewportWidth:  a.cfg.ViewportWidth,
		ViewportHeight: a.cfg.ViewportHeight,
		Timeout:        time.Duration(a.cfg.CaptureTimeout * float64(time.Second)),
	}, a.log)
}

func (a *app) publisher(cmd *cobra.Command) (*artifacts.Publisher, error) {
	if !a.cfg.ArtifactsEnabled() {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "set SHOTDIFF_ARTIFACT_BUCKET to publish artifacts")
	}
	return artifacts.NewPublisher(cmd.Context(), artifacts.StoreConfig{
		Endpoint:        a.cfg.S3Endpoint,
		Region:          a.cfg.S3Region,
		AccessKeyID:     a.cfg.S3AccessKeyID,
		SecretAccessKey: a.cfg.S3SecretAccessKey,
		Bucket:          a.cfg.ArtifactBucket,
		Prefix:          a.cfg.ArtifactPrefix,
		UsePathStyle:    a.cfg.S3PathStyle,
	}, a.log)
}

func (a *app) writeOutputs(cmd *cobra.Command, f runFlags, report *runner.Report) error {
	if f.reportPath != "" {
		data, err := yaml.Marshal(report)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "encode report")
		}
		if err := os.WriteFile(f.reportPath, data, 0o644); err != nil {
			return apperrors.Wrap(err, apperrors.CodeFilesystem, "write report").WithMetadata("path", f.reportPath)
		}
	}

	if f.bundlePath != "" {
		var buf bytes.Buffer
		if err := artifacts.Bundle(report, &buf); err != nil {
			return err
		}
		if err := os.WriteFile(f.bundlePath, buf.Bytes(), 0o644); err != nil {
			return apperrors.Wrap(err, apperrors.CodeFilesystem, "write bundle").WithMetadata("path", f.bundlePath)
		}
		a.log.Info("review bundle written", "path", f.bundlePath, "bytes", buf.Len())
	}

	if f.publish {
		pub, err := a.publisher(cmd)
		if err != nil {
			return err
		}
		if _, err := pub.Publish(cmd.Context(), report); err != nil {
			return err
		}
	}
	return nil
}
