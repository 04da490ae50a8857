package main

import (
	"os"
	"time"

	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var replayFlags struct {
	config   string
	headless bool
	delay    time.Duration
	realtime bool
}

var replayCmd = &cobra.Command{
	Use:   "replay RECORDING",
	Short: "Play a recorded run back through a dashboard",
	Long: `Feed the messages of a recording written with --record back into a
dashboard. Requests the panels make during playback are not answered; the
recorded responses are replayed instead.

Examples:
  mldash replay run.jsonl
  mldash replay run.jsonl --realtime
  mldash replay run.jsonl --headless --config examples/dashboard.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVarP(&replayFlags.config, "config", "c", "", "dashboard layout; built-in layout when empty")
	f.BoolVar(&replayFlags.headless, "headless", false, "no terminal UI; print the final frame")
	f.DurationVar(&replayFlags.delay, "delay", 50*time.Millisecond, "pause between messages")
	f.BoolVar(&replayFlags.realtime, "realtime", false, "keep the recorded spacing between messages instead of --delay")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc, err := loadLayout(replayFlags.config)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open recording")
	}
	records, err := protocol.ReadRecords(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	logger.Info().Str("file", args[0]).Int("messages", len(records)).Msg("replaying")

	tty := interactive(replayFlags.headless)
	if tty {
		holdLogs()
		defer flushLogs()
	}
	sess, err := session.Launch(ctx, doc, session.Options{
		Logger:       &logger,
		Headless:     !tty,
		WaitForStart: true,
	})
	if err != nil {
		return err
	}

	err = play(sess, records)
	if err := sess.Queues.Updates.Push(protocol.End()); err != nil {
		logger.Warn().Err(err).Msg("push end")
	}
	waitErr := sess.Wait()
	dropped := sess.Queues.Returns.Drain()
	logger.Debug().Int("requests", len(dropped)).Msg("unanswered panel requests")
	if err != nil {
		return err
	}
	return waitErr
}

// play pushes records until one of them is an End message, the dashboard
// closes or the command is interrupted.
func play(sess *session.Session, records []protocol.Record) error {
	for i, rec := range records {
		if rec.Kind == protocol.KindEnd {
			return nil
		}
		if i > 0 {
			wait := replayFlags.delay
			if replayFlags.realtime {
				wait = rec.At.Sub(records[i-1].At)
			}
			if wait > 0 {
				select {
				case <-sess.Done():
					return nil
				case <-time.After(wait):
				}
			}
		}
		select {
		case <-sess.Done():
			return nil
		default:
		}
		if err := sess.Queues.Updates.Push(rec.Message()); err != nil {
			return errors.Wrapf(err, "replay message %d", i)
		}
	}
	return nil
}
