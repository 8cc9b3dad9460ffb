package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/maneifest/internal/alignment"
	"github.com/kozaktomas/maneifest/internal/capture"
	"github.com/kozaktomas/maneifest/internal/detection"
	"github.com/kozaktomas/maneifest/internal/geometry"
	"github.com/kozaktomas/maneifest/internal/logger"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Auto-capture a photo once the face is aligned",
	Long: `Read camera frames, detect the face in each one and take the photo after
the face stays centered and well sized through the countdown.

Frames come from an MJPEG stream (a file, or - for stdin) or from a
directory of still images replayed in name order. Faces are detected by
the detection server at DETECTOR_URL.

Examples:
  # Webcam via ffmpeg
  ffmpeg -f v4l2 -i /dev/video0 -f mjpeg - | maneifest capture --input - --output selfie.png

  # Replay recorded frames
  maneifest capture --dir frames/ --output selfie.png`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("input", "", "MJPEG stream file, or - for stdin")
	captureCmd.Flags().String("dir", "", "Directory of frames to replay")
	captureCmd.Flags().String("output", "capture.png", "Where to write the captured photo")
	captureCmd.Flags().Float64("rate", 0, "Analyzed frames per second (0 = ANALYSIS_RATE)")
	captureCmd.MarkFlagsMutuallyExclusive("input", "dir")
	captureCmd.MarkFlagsOneRequired("input", "dir")
}

func openFrameSource(cmd *cobra.Command) (capture.Source, io.Closer, error) {
	if dir := mustGetString(cmd, "dir"); dir != "" {
		src, err := capture.NewDirSource(dir)
		return src, io.NopCloser(nil), err
	}
	input := mustGetString(cmd, "input")
	if input == "-" {
		return capture.NewStreamSource(os.Stdin), io.NopCloser(nil), nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return capture.NewStreamSource(f), f, nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	src, closer, err := openFrameSource(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	rate := cfg.Capture.AnalysisRate
	if r := mustGetFloat64(cmd, "rate"); r > 0 {
		rate = r
	}

	tracker := alignment.NewTracker(cfg.AlignmentConfig())
	session := capture.NewSession(src, detection.NewClient(cfg.Detector.URL, cfg.Detector.MinScore), tracker, capture.Options{
		Rate:   rate,
		Logger: log,
		OnState: func(frame capture.Frame, box *geometry.BoundingBox, state alignment.State) {
			entry := log.WithFields(logger.Fields{
				"frame":   frame.Index,
				"phase":   state.Phase,
				"aligned": state.ConsecutiveAlignedFrames,
			})
			if box != nil {
				entry = entry.WithField("bbox", box.Corners())
			}
			entry.Debug("frame analyzed")
			if v, ok := state.CountdownValue(); ok {
				fmt.Printf("%d...\n", v)
			}
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("Look at the camera, trigger after %d aligned frames at %.0f fps\n",
		tracker.Config().TriggerFrames(), rate)
	c, err := session.Run(ctx)
	if errors.Is(err, capture.ErrSourceExhausted) {
		return errors.New("frames ran out before the countdown finished")
	}
	if err != nil {
		return err
	}

	data, err := c.PNG()
	if err != nil {
		return err
	}
	output := mustGetString(cmd, "output")
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	fmt.Printf("Captured %s (frame %d) to %s\n", c.ID, c.Frame.Index, output)
	return nil
}
