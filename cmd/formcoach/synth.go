package main

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/posesynth"
	"github.com/lucasjlepore/form-analyzer/recording"
)

var synthFlags struct {
	exercise       string
	reps           int
	framesPerRep   int
	interval       time.Duration
	gestureControl bool
	out            string
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a synthetic landmark recording of a clean set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := formcoach.ParseExercise(synthFlags.exercise)
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		opts := posesynth.SetOptions{
			Reps:         synthFlags.reps,
			FramesPerRep: synthFlags.framesPerRep,
			Interval:     synthFlags.interval,
		}
		var frames []formcoach.Frame
		if synthFlags.gestureControl {
			frames, err = posesynth.ControlledSet(registry, ex, opts)
		} else {
			frames, err = posesynth.Set(registry, ex, opts)
		}
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if synthFlags.out != "" && synthFlags.out != "-" {
			f, err := os.Create(synthFlags.out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := recording.WriteFrames(w, frames); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"exercise": ex,
			"frames":   len(frames),
			"out":      synthFlags.out,
		}).Debug("synthetic recording written")
		return nil
	},
}

func init() {
	flags := synthCmd.Flags()
	flags.StringVarP(&synthFlags.exercise, "exercise", "e", "squat", "exercise id")
	flags.IntVar(&synthFlags.reps, "reps", 5, "number of reps (hold cycles for static exercises)")
	flags.IntVar(&synthFlags.framesPerRep, "frames-per-rep", 8, "frames per rep")
	flags.DurationVar(&synthFlags.interval, "interval", 300*time.Millisecond, "time between frames")
	flags.BoolVar(&synthFlags.gestureControl, "gesture-control", false, "wrap the set in thumbs up / thumbs down gestures")
	flags.StringVarP(&synthFlags.out, "out", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(synthCmd)
}
