package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/editor"
	"github.com/keagan/shotlist/internal/pipeline"
	"github.com/keagan/shotlist/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newEditor wires the ffmpeg pipeline and session store for one command.
func newEditor(cfg *config.Config, opts editor.Options) (*editor.Editor, error) {
	pipe, err := pipeline.New(log.Logger, cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(cfg.DataDir, log.Logger)
	return editor.New(log.Logger, cfg, pipe, store, opts), nil
}

// openSource opens the named video, or the last opened one when args is empty.
func openSource(cmd *cobra.Command, ed *editor.Editor, args []string) (*editor.Snapshot, error) {
	if len(args) == 0 {
		snap, err := ed.OpenLast(cmd.Context())
		if errors.Is(err, session.ErrNotFound) {
			return nil, errors.New("no video given and no previously opened video")
		}
		return snap, err
	}
	return ed.Open(cmd.Context(), args[0], editor.OpenOptions{})
}

func printShots(w io.Writer, snap *editor.Snapshot) error {
	fmt.Fprintf(w, "%s  %s fps  %d frames\n\n", snap.Source, snap.FPS, snap.TotalFrames)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTART\tEND\tDURATION\tTIMECODE\tNEW RANGE\tENABLED")
	for _, s := range snap.Shots {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%d-%d\t%t\n",
			s.Name, s.Start, s.End, s.Duration, s.Timecode, s.NewStart, s.NewEnd, s.Enabled)
	}
	return tw.Flush()
}

func parseFrame(arg string) (int, error) {
	frame, err := strconv.Atoi(arg)
	if err != nil || frame < 0 {
		return 0, fmt.Errorf("invalid frame %q", arg)
	}
	return frame, nil
}

var detectThreshold float64

var detectCmd = &cobra.Command{
	Use:   "detect [video]",
	Short: "Detect shots in a video, replacing any saved shot list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		ed, err := newEditor(cfg, editor.Options{})
		if err != nil {
			return err
		}

		snap, err := ed.Open(cmd.Context(), args[0], editor.OpenOptions{
			Redetect:  true,
			Threshold: detectThreshold,
		})
		if err != nil {
			return err
		}
		return printShots(cmd.OutOrStdout(), snap)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [video]",
	Short: "Show the shot list of a video",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, err := newEditor(config.FromContext(cmd.Context()), editor.Options{})
		if err != nil {
			return err
		}
		snap, err := openSource(cmd, ed, args)
		if err != nil {
			return err
		}
		return printShots(cmd.OutOrStdout(), snap)
	},
}

// frameCommand builds split, merge and delete, which all take a video and a frame.
func frameCommand(use, short string, edit func(ed *editor.Editor, cmd *cobra.Command, frame int) (*editor.Snapshot, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [video] [frame]",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := parseFrame(args[1])
			if err != nil {
				return err
			}
			ed, err := newEditor(config.FromContext(cmd.Context()), editor.Options{})
			if err != nil {
				return err
			}
			if _, err := openSource(cmd, ed, args[:1]); err != nil {
				return err
			}
			snap, err := edit(ed, cmd, frame)
			if err != nil {
				return err
			}
			return printShots(cmd.OutOrStdout(), snap)
		},
	}
}

var splitCmd = frameCommand("split", "Start a new shot at a frame",
	func(ed *editor.Editor, cmd *cobra.Command, frame int) (*editor.Snapshot, error) {
		return ed.Split(cmd.Context(), frame)
	})

var mergeCmd = frameCommand("merge", "Join the shot starting at a frame to the previous shot",
	func(ed *editor.Editor, cmd *cobra.Command, frame int) (*editor.Snapshot, error) {
		return ed.Merge(cmd.Context(), frame)
	})

var deleteCmd = frameCommand("delete", "Remove the shot containing a frame",
	func(ed *editor.Editor, cmd *cobra.Command, frame int) (*editor.Snapshot, error) {
		return ed.Delete(cmd.Context(), frame)
	})

var (
	moveStart int
	moveEnd   int
)

var moveCmd = &cobra.Command{
	Use:   "move [video] [shot]",
	Short: "Move the first or last frame of a shot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		startSet, endSet := cmd.Flags().Changed("start"), cmd.Flags().Changed("end")
		if !startSet && !endSet {
			return errors.New("one of --start or --end is required")
		}

		ed, err := newEditor(config.FromContext(cmd.Context()), editor.Options{})
		if err != nil {
			return err
		}
		if _, err := openSource(cmd, ed, args[:1]); err != nil {
			return err
		}

		var u editor.Update
		if startSet {
			u.Start = &moveStart
		}
		if endSet {
			u.End = &moveEnd
		}
		snap, err := ed.UpdateShot(cmd.Context(), args[1], u)
		if err != nil {
			return err
		}
		return printShots(cmd.OutOrStdout(), snap)
	},
}

var (
	setEnable     bool
	setIgnore     bool
	setNewStart   int
	setPrefix     string
	setShotStart  int
	setSequential bool
)

var setCmd = &cobra.Command{
	Use:   "set [video] [shot]",
	Short: "Change shot attributes, or the prefix and start frame of every shot",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		ed, err := newEditor(config.FromContext(cmd.Context()), editor.Options{})
		if err != nil {
			return err
		}
		snap, err := openSource(cmd, ed, args[:1])
		if err != nil {
			return err
		}

		if len(args) == 2 {
			var u editor.Update
			if flags.Changed("enabled") {
				u.Enabled = &setEnable
			}
			if flags.Changed("ignored") {
				u.Ignored = &setIgnore
			}
			if flags.Changed("new-start") {
				u.NewStart = &setNewStart
			}
			if snap, err = ed.UpdateShot(cmd.Context(), args[1], u); err != nil {
				return err
			}
		}
		if flags.Changed("prefix") {
			if snap, err = ed.SetPrefix(cmd.Context(), setPrefix); err != nil {
				return err
			}
		}
		if flags.Changed("shot-start") {
			if snap, err = ed.SetShotStart(cmd.Context(), setShotStart, setSequential); err != nil {
				return err
			}
		}

		return printShots(cmd.OutOrStdout(), snap)
	},
}

var (
	exportDir      string
	exportThumbs   bool
	exportMovies   bool
	exportAudio    bool
	exportEDL      bool
	exportOTIO     bool
	exportFCPXML   bool
	exportShotList bool
	exportThumbWid int
)

var exportCmd = &cobra.Command{
	Use:   "export [video]",
	Short: "Write per-shot media and timelines for the enabled shots",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		flags := cmd.Flags()

		opts := pipeline.ExportOptions{
			Dir:            exportDir,
			Thumbnails:     cfg.Export.Thumbnails,
			Movies:         cfg.Export.Movies,
			Audio:          cfg.Export.Audio,
			EDL:            cfg.Export.EDL,
			OTIO:           cfg.Export.OTIO,
			FCPXML:         cfg.Export.FCPXML,
			ShotList:       cfg.Export.ShotList,
			ThumbnailWidth: cfg.Export.ThumbnailWidth,
		}
		if flags.Changed("thumbnails") {
			opts.Thumbnails = exportThumbs
		}
		if flags.Changed("movies") {
			opts.Movies = exportMovies
		}
		if flags.Changed("audio") {
			opts.Audio = exportAudio
		}
		if flags.Changed("edl") {
			opts.EDL = exportEDL
		}
		if flags.Changed("otio") {
			opts.OTIO = exportOTIO
		}
		if flags.Changed("fcp-xml") {
			opts.FCPXML = exportFCPXML
		}
		if flags.Changed("shot-list") {
			opts.ShotList = exportShotList
		}
		if flags.Changed("thumbnail-width") {
			opts.ThumbnailWidth = exportThumbWid
		}

		ed, err := newEditor(cfg, editor.Options{})
		if err != nil {
			return err
		}
		if _, err := openSource(cmd, ed, args); err != nil {
			return err
		}

		report, err := ed.Export(cmd.Context(), opts)
		if err != nil {
			return err
		}

		log.Info().
			Int("thumbnails", report.Thumbnails).
			Int("movies", report.Movies).
			Int("audio", report.Audio).
			Strs("timelines", report.Timelines).
			Msg("export finished")
		if report.Errors > 0 {
			return fmt.Errorf("export finished with %d errors", report.Errors)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().Float64VarP(&detectThreshold, "threshold", "t", 0, "scene change threshold 0-100 (default from config)")

	moveCmd.Flags().IntVar(&moveStart, "start", 0, "new first frame")
	moveCmd.Flags().IntVar(&moveEnd, "end", 0, "new last frame")

	setCmd.Flags().BoolVar(&setEnable, "enabled", true, "include the shot in exports")
	setCmd.Flags().BoolVar(&setIgnore, "ignored", false, "mark the shot as ignored")
	setCmd.Flags().IntVar(&setNewStart, "new-start", 0, "re-timed start frame of the shot")
	setCmd.Flags().StringVar(&setPrefix, "prefix", "", "name prefix for every shot")
	setCmd.Flags().IntVar(&setShotStart, "shot-start", 0, "re-timed start frame for every shot")
	setCmd.Flags().BoolVar(&setSequential, "sequential", false, "with --shot-start, lay enabled shots end to end")

	exportCmd.Flags().StringVarP(&exportDir, "dir", "o", "", "export directory")
	exportCmd.Flags().BoolVar(&exportThumbs, "thumbnails", true, "write a thumbnail per shot")
	exportCmd.Flags().BoolVar(&exportMovies, "movies", true, "write a movie per shot")
	exportCmd.Flags().BoolVar(&exportAudio, "audio", true, "write a WAV file per shot")
	exportCmd.Flags().BoolVar(&exportEDL, "edl", true, "write a CMX 3600 EDL")
	exportCmd.Flags().BoolVar(&exportOTIO, "otio", true, "write an OTIO timeline")
	exportCmd.Flags().BoolVar(&exportFCPXML, "fcp-xml", false, "write a Final Cut Pro 7 XML timeline")
	exportCmd.Flags().BoolVar(&exportShotList, "shot-list", true, "write an .xlsx shot list with previews")
	exportCmd.Flags().IntVar(&exportThumbWid, "thumbnail-width", 0, "maximum thumbnail width in pixels")
}
