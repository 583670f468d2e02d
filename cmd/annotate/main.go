// Package main is the headless annotator command.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

const (
	flagInput     = "input"
	flagOutput    = "output"
	flagThreshold = "threshold"
	flagWorkers   = "workers"
	flagResults   = "results"
	flagImageRoot = "image-root"
	flagDB        = "db"
	flagNoHistory = "no-history"
)

func main() {
	app := &cli.App{
		Name:            "annotate",
		Usage:           "detect and draw animals, people and vehicles on camera trap images",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run the detector over a directory, then render and save the results",
				UsageText: "annotate run --input <dir> [--output <dir>] [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagInput,
						Required: true,
						Usage:    "directory of images, searched recursively",
					},
					&cli.PathFlag{
						Name:  flagOutput,
						Usage: "output directory, defaults to <input>_detections",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "minimum confidence of drawn detections, defaults to the configured threshold",
						Value: -1,
					},
					&cli.IntFlag{
						Name:  flagWorkers,
						Usage: "render workers, 0 means one per processor",
						Value: -1,
					},
					&cli.BoolFlag{
						Name:  flagNoHistory,
						Usage: "do not record the run in the history database",
					},
				},
				Action: RunAction,
			},
			{
				Name:      "render",
				Usage:     "draw an existing results file without running the detector",
				UsageText: "annotate render --results <detections.json> --output <dir> [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagResults,
						Required: true,
						Usage:    "results file written by a previous run or by MegaDetector",
					},
					&cli.PathFlag{
						Name:     flagOutput,
						Required: true,
						Usage:    "directory for the annotated images",
					},
					&cli.PathFlag{
						Name:  flagImageRoot,
						Usage: "directory that relative image paths in the results file are resolved against",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "minimum confidence of drawn detections, defaults to the configured threshold",
						Value: -1,
					},
					&cli.IntFlag{
						Name:  flagWorkers,
						Usage: "render workers, 0 means one per processor",
						Value: -1,
					},
				},
				Action: RenderAction,
			},
			{
				Name:      "import",
				Usage:     "record a finished output directory in the run history",
				UsageText: "annotate import --output <dir> [--db <path>]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagOutput,
						Required: true,
						Usage:    "output directory containing detections.json",
					},
					&cli.PathFlag{
						Name:  flagInput,
						Usage: "input directory the run was made from",
					},
					&cli.PathFlag{
						Name:  flagDB,
						Usage: "history database, defaults to the configured path",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "threshold the images were rendered with",
						Value: -1,
					},
				},
				Action: ImportAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
