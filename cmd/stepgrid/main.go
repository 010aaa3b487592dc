package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stepgrid/stepgrid"
	"github.com/stepgrid/stepgrid/internal/config"
)

var (
	configPath string
	sampleRate int
	seed       int64
)

func main() {
	root := &cobra.Command{
		Use:   "stepgrid",
		Short: "Step-sequenced polyphonic synthesizer",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "session.yaml", "session file (missing file plays the default session)")
	root.PersistentFlags().IntVar(&sampleRate, "sample-rate", 48000, "output sample rate")
	root.PersistentFlags().Int64Var(&seed, "seed", 0, "pattern random seed (0 = time-seeded)")
	root.AddCommand(playCmd(), renderCmd(), initCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func playerOptions() []stepgrid.Option {
	opts := []stepgrid.Option{stepgrid.WithSampleRate(sampleRate)}
	if seed != 0 {
		opts = append(opts, stepgrid.WithRandSeed(seed))
	}
	return opts
}

func playCmd() *cobra.Command {
	var (
		tempo     float64
		metronome bool
		duration  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the session live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := config.Load(configPath)
			if err != nil {
				return err
			}
			pl, err := stepgrid.NewPlayer(session, playerOptions()...)
			if err != nil {
				return err
			}
			defer pl.Close()
			if tempo > 0 {
				pl.SetTempo(tempo)
			}
			if cmd.Flags().Changed("metronome") {
				pl.SetMetronome(metronome)
			}

			events := pl.Watch()
			if err := pl.Start(); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			var timeout <-chan time.Time
			if duration > 0 {
				timeout = time.After(duration)
			}
			for {
				select {
				case ev := <-events:
					switch ev.Kind {
					case stepgrid.EventStarted:
						fmt.Printf("playing at %.0f BPM\n", pl.Tempo())
					case stepgrid.EventStep:
						fmt.Printf("step %d\n", ev.Step)
					case stepgrid.EventStopped:
						fmt.Println("stopped")
						return nil
					}
				case <-sig:
					pl.Stop()
				case <-timeout:
					pl.Stop()
				}
			}
		},
	}
	cmd.Flags().Float64Var(&tempo, "tempo", 0, "override session tempo (BPM)")
	cmd.Flags().BoolVar(&metronome, "metronome", false, "override session metronome setting")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = until interrupt)")
	return cmd
}

func renderCmd() *cobra.Command {
	var (
		out     string
		seconds float64
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the session offline to a WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := stepgrid.RenderWAVFile(out, session, seconds, playerOptions()...); err != nil {
				return err
			}
			fmt.Printf("wrote %.1fs to %s\n", seconds, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "out.wav", "output WAV path")
	cmd.Flags().Float64Var(&seconds, "seconds", 8, "length to render")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default session file for editing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists", configPath)
			}
			if err := config.Default().Save(configPath); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}
