package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

func newHashCmd(a *app) *cobra.Command {
	var against string

	cmd := &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the perceptual fingerprint of image files",
		Long:  "Prints the average hash of each image. A file argument of - reads the image from stdin.",
		Example: `  shotdiff hash screenshots/actual/home.png
  shotdiff hash --against a:8f0f0f0f0f0f0f0f home.png
  curl -s https://example.com/logo.png | shotdiff hash -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref visual.Fingerprint
			if against != "" {
				fp, err := visual.ParseFingerprint(against)
				if err != nil {
					return usageError(err)
				}
				ref = fp
			}

			h := visual.AverageHasher{}
			out := cmd.OutOrStdout()
			for _, path := range args {
				fp, err := hashArg(cmd, h, path)
				if err != nil {
					a.log.Error("cannot hash image", "path", path, "error", err)
					return usageError(err)
				}
				if ref.IsZero() {
					fmt.Fprintf(out, "%s  %s\n", fp, path)
					continue
				}
				d, err := ref.Distance(fp)
				if err != nil {
					return usageError(err)
				}
				fmt.Fprintf(out, "%s  %s  distance=%d\n", fp, path, d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&against, "against", "", "fingerprint to report distances from")
	return cmd
}

func hashArg(cmd *cobra.Command, h visual.Hasher, path string) (visual.Fingerprint, error) {
	if path != "-" {
		return visual.HashFile(h, path)
	}
	img, err := visual.Decode(cmd.InOrStdin())
	if err != nil {
		return visual.Fingerprint{}, err
	}
	return h.Hash(img)
}
