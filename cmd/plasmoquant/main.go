package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"plasmoquant/pkg/analysis"
	"plasmoquant/pkg/config"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "plasmoquant.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	walls := flag.String("walls", "", "Original cell wall image")
	pds := flag.String("pds", "", "Original plasmodesmata image")
	scaled := flag.String("scaled", "", "Wall image the ROIs were drawn on")
	mask := flag.String("mask", "", "Segmented PD mask")
	rois := flag.String("rois", "", "RoiSet (.zip) or single .roi with the cell outlines")
	basename := flag.String("basename", "", "Prefix of every output file (default: name of -walls)")
	outputDir := flag.String("output", "", "Output directory (overrides the configuration)")
	wallMargin := flag.Int("wall-margin", -1, "Wall enlargement in pixels (overrides the configuration)")
	pdMargin := flag.Int("pd-margin", -1, "PD enlargement in pixels (overrides the configuration)")
	lut := flag.String("lut", "", "Lookup table of colour map previews (overrides the configuration)")
	workers := flag.Int("workers", 0, "Units analysed concurrently (overrides the configuration)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags win over the configuration file
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *wallMargin >= 0 {
		cfg.Analysis.WallMargin = *wallMargin
	}
	if *pdMargin >= 0 {
		cfg.Analysis.PDMargin = *pdMargin
	}
	if *lut != "" {
		cfg.Output.LUT = *lut
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if *walls != "" {
		name := *basename
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(*walls), filepath.Ext(*walls))
		}
		cfg.Units = []config.Unit{{
			Basename:     name,
			OriWalls:     *walls,
			OriPDs:       *pds,
			ScaledWalls:  *scaled,
			SegmentedPDs: *mask,
			Rois:         *rois,
		}}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Units) == 0 {
		fmt.Fprintln(os.Stderr, "No units to analyse: pass -walls/-pds/-scaled/-mask/-rois or list units in the configuration")
		flag.Usage()
		os.Exit(1)
	}

	logger := initLogger(cfg, *debugMode)

	analyzer := analysis.NewAnalyzer(analysis.Options{
		WallMargin:              cfg.Analysis.WallMargin,
		PDMargin:                cfg.Analysis.PDMargin,
		Separator:               cfg.Analysis.Separator,
		CountPDsInEnlargedWalls: cfg.Analysis.CountPDsInEnlargedWalls,
		OutputDir:               cfg.Output.Dir,
		LUT:                     cfg.Output.LUT,
		Legend:                  cfg.Output.Legend,
	})
	analyzer.Log = logger

	jobs := make([]analysis.Job, len(cfg.Units))
	for i, u := range cfg.Units {
		jobs[i] = analysis.Job{
			Basename: u.Basename,
			Source: analysis.Source{
				OriWalls:     u.OriWalls,
				OriPDs:       u.OriPDs,
				ScaledWalls:  u.ScaledWalls,
				SegmentedPDs: u.SegmentedPDs,
				Rois:         u.Rois,
			},
		}
	}

	logger.WithFields(logrus.Fields{
		"units":   len(jobs),
		"workers": cfg.Processing.Workers,
		"output":  cfg.Output.Dir,
	}).Info("Starting plasmodesmata analysis")
	startTime := time.Now()
	results := analyzer.RunBatch(jobs, cfg.Processing.Workers)

	failed := 0
	fmt.Println("\nSummary:")
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("- %s: FAILED (%v)\n", r.Job.Basename, firstLine(r.Err.Error()))
			continue
		}
		fmt.Printf("- %s: %d cells, %d tags in %.2f seconds\n",
			r.Job.Basename, r.Result.PerCell.Len(), r.Result.PerTag.Len(), r.Duration.Seconds())
	}
	fmt.Printf("\nProcessed %d unit(s) in %.2f seconds, %d failed\n",
		len(results), time.Since(startTime).Seconds(), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// initLogger sets up logrus from the configuration; -debug forces debug
// level with coloured text output.
func initLogger(cfg *config.Config, debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
		return logger
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(cfg.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
