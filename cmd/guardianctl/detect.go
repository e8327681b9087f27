package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/detector"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Run the configured detector on one image and print every detection",
	Long: `Run the configured detector on one image.

Uses DETECTOR_URL, DETECTOR_LABELS, DETECTOR_WEIGHTS and DETECTOR_DEVICE from
the environment. Thresholds default to the DETECTOR_* values and can be
overridden with flags.

Example:
  guardianctl detect ./screenshot.png --conf 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadLenient()
		opts := detector.Options{
			Weights:       cfg.DetectorWeights,
			Device:        cfg.DetectorDevice,
			ConfThreshold: cfg.DetectorConf,
			IoUThreshold:  cfg.DetectorIoU,
			MaxDetections: cfg.DetectorMaxDet,
		}
		if f := cmd.Flags(); f.Changed("conf") {
			opts.ConfThreshold, _ = f.GetFloat64("conf")
		}
		if f := cmd.Flags(); f.Changed("iou") {
			opts.IoUThreshold, _ = f.GetFloat64("iou")
		}
		if f := cmd.Flags(); f.Changed("max-det") {
			opts.MaxDetections, _ = f.GetInt("max-det")
		}

		var labels []string
		if cfg.DetectorLabels != "" {
			var err error
			if labels, err = detector.LoadLabels(cfg.DetectorLabels); err != nil {
				return err
			}
		}
		model := detector.NewModel(detector.NewRemoteBackend(cfg.DetectorURL, cfg.DetectorTimeout), labels)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.DetectorTimeout+5*time.Second)
		defer cancel()
		dets, err := model.DetectAll(ctx, args[0], opts)
		if err != nil {
			return err
		}

		out := struct {
			Flagged    bool                 `json:"flagged"`
			Best       string               `json:"best,omitempty"`
			Detections []detector.Detection `json:"detections"`
		}{Detections: dets}
		if best, ok := detector.Top(dets); ok {
			out.Flagged = true
			out.Best = fmt.Sprintf("%s %.2f%%", best.Label, best.Confidence*100)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	detectCmd.Flags().Float64("conf", detector.DefaultConfThreshold, "confidence threshold")
	detectCmd.Flags().Float64("iou", detector.DefaultIoUThreshold, "NMS IoU threshold")
	detectCmd.Flags().Int("max-det", detector.DefaultMaxDetections, "maximum detections per image")
	rootCmd.AddCommand(detectCmd)
}
