package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/labelscan/internal/conditioner"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

func newConditionCommand(*app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "condition <image>",
		Short: "Write the conditioned (binarized) image the recognizers see",
		Long: `Condition a label photo the way the pipeline does (downscale to 1920 px,
boost contrast, desaturate, binarize) and save the result as PNG.

Examples:
  labelscan condition label.jpg
  labelscan condition label.jpg -o /tmp/label.bw.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			return runCondition(cmd, args[0], out)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output PNG (default <image>.conditioned.png next to the input)")
	return cmd
}

func runCondition(cmd *cobra.Command, path, out string) error {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return err
	}
	c, err := conditioner.Condition(img)
	if err != nil {
		return err
	}
	if out == "" {
		out = conditioner.DebugPath(filepath.Dir(path), path)
	}
	if err := c.SavePNG(out); err != nil {
		return err
	}
	st := c.Stats()
	slog.Debug("Conditioned image saved", "source", path, "format", meta.Format, "output", out)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d -> %dx%d, mean luma %.1f, threshold %.1f\nSaved %s\n",
		path, st.SourceWidth, st.SourceHeight, st.Width, st.Height, st.MeanLuma, st.Threshold, out)
	return nil
}
