package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/imageio"
)

// analyzeOptions mirrors the analyze flags
type analyzeOptions struct {
	Detector        string
	Engine          string
	AgeGenderModel  string
	ExpressionModel string
	ModelsDir       string
	Cascade         string
	ComprefaceURL   string
	DetectionKey    string
	OutDir          string
	Timeout         int
	Sequential      bool
	MinFaceSize     int
	EnvFile         string
	JSON            bool
	NoProgress      bool
	LogLevel        string
}

func newAnalyzeCommand(factory analysis.Factory) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file|dir>...",
		Short: "Detect faces and predict their attributes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			files, err := collectImages(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported images found")
			}
			return runAnalyze(cmd, factory, cfg, files, opts)
		},
	}

	defaults := config.Defaults("")
	flags := cmd.Flags()
	flags.StringVar(&opts.Detector, "detector", defaults.Detector, "Face detector: compreface, dlib, pigo or auto")
	flags.StringVar(&opts.Engine, "engine", defaults.Engine, "Inference engine: tflite, onnx or auto")
	flags.StringVar(&opts.AgeGenderModel, "age-gender-model", defaults.AgeGenderModel, "Age/gender model file (relative names resolve against --models-dir)")
	flags.StringVar(&opts.ExpressionModel, "expression-model", defaults.ExpressionModel, "Expression model file (relative names resolve against --models-dir)")
	flags.StringVar(&opts.ModelsDir, "models-dir", defaults.ModelsDir, "Directory holding model and cascade files")
	flags.StringVar(&opts.Cascade, "cascade", "", "pigo facefinder cascade (default <models-dir>/facefinder)")
	flags.StringVar(&opts.ComprefaceURL, "compreface-url", "", "CompreFace base URL")
	flags.StringVar(&opts.DetectionKey, "detection-key", "", "CompreFace detection service API key")
	flags.StringVarP(&opts.OutDir, "out", "o", "", "Write annotated images to this directory")
	flags.IntVarP(&opts.Timeout, "timeout", "t", defaults.InferenceTimeoutSeconds, "Inference timeout in seconds")
	flags.BoolVar(&opts.Sequential, "sequential", false, "Run the two models one after the other")
	flags.IntVar(&opts.MinFaceSize, "min-face-size", 0, "Ignore faces smaller than this many pixels")
	flags.StringVar(&opts.EnvFile, "env-file", ".env", "FACEATTR_* overrides file")
	flags.BoolVar(&opts.JSON, "json", false, "Print results as JSON")
	flags.BoolVar(&opts.NoProgress, "no-progress", false, "Hide the progress bar")
	flags.StringVar(&opts.LogLevel, "log-level", "warning", "Show log lines at or above: trace, debug, info, warning, error or none")

	return cmd
}

// buildConfig layers defaults, the env file, then any flag the user set
func buildConfig(cmd *cobra.Command, opts analyzeOptions) (*config.PluginConfig, error) {
	cfg := config.Defaults("")
	if err := cfg.ApplyEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("detector", func() { cfg.Detector = opts.Detector })
	set("engine", func() { cfg.Engine = opts.Engine })
	set("age-gender-model", func() { cfg.AgeGenderModel = opts.AgeGenderModel })
	set("expression-model", func() { cfg.ExpressionModel = opts.ExpressionModel })
	set("models-dir", func() { cfg.ModelsDir = opts.ModelsDir })
	set("cascade", func() { cfg.CascadePath = opts.Cascade })
	set("compreface-url", func() { cfg.ComprefaceURL = opts.ComprefaceURL })
	set("detection-key", func() { cfg.DetectionAPIKey = opts.DetectionKey })
	set("out", func() { cfg.OutputDir = opts.OutDir })
	set("timeout", func() { cfg.InferenceTimeoutSeconds = opts.Timeout })
	set("sequential", func() { cfg.Sequential = opts.Sequential })
	set("min-face-size", func() { cfg.MinFaceSize = opts.MinFaceSize })

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// collectImages expands directories into the supported images they contain
func collectImages(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && imageio.IsSupported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func runAnalyze(cmd *cobra.Command, factory analysis.Factory, cfg *config.PluginConfig, files []string, opts analyzeOptions) error {
	stderr := &lockedWriter{w: cmd.ErrOrStderr()}
	restore, err := captureLogs(stderr, opts.LogLevel)
	if err != nil {
		return err
	}
	defer restore()

	analyzer := analysis.New(cfg, factory(cfg))
	defer analyzer.Close()

	var progress io.Writer = stderr
	if opts.NoProgress {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)

	out := cmd.OutOrStdout()
	reports := make([]analysis.Report, 0, len(files))
	for _, file := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		report := analyzer.AnalyzeFile(cmd.Context(), file, analyzer.OutputPath(file, ""))
		reports = append(reports, report)
		_ = bar.Add(1)

		if !opts.JSON {
			printReport(out, report)
		}
	}
	_ = bar.Finish()

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	}

	summary := analysis.Summarize(reports)
	fmt.Fprintf(stderr, "\n%d image(s): %d analyzed, %d without faces, %d failed\n",
		summary.Total, summary.Done, summary.NoFace, summary.Failed)
	return nil
}

// printReport writes the two result fields as the plugin shows them
func printReport(w io.Writer, report analysis.Report) {
	fmt.Fprintf(w, "%s\n", report.Source)
	if report.AgeGender != "" {
		fmt.Fprintf(w, "  %s\n", indent(report.AgeGender))
	}
	if report.Expression != "" {
		fmt.Fprintf(w, "  %s\n", report.Expression)
	}
	if report.AgeGender == "" && report.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", report.Error)
	}
	if report.AnnotatedPath != "" {
		fmt.Fprintf(w, "  annotated: %s\n", report.AnnotatedPath)
	}
}

func indent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, r)
		if r == '\n' {
			out = append(out, ' ', ' ')
		}
	}
	return string(out)
}
