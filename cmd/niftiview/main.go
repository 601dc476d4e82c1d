package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"niftiview/internal/models"
	"niftiview/pkg/config"
	"niftiview/pkg/interaction"
	"niftiview/pkg/logger"
	"niftiview/pkg/metrics"
	"niftiview/pkg/repository"
	"niftiview/pkg/server"
	"niftiview/pkg/upload"
	"niftiview/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "niftiview.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	numCores := flag.Int("cores", 0, "Number of files decoded in parallel (default: processing.numCores)")
	mappingTitle := flag.String("mapping", "", "Record the loaded files as one mapping with this title")
	outputs := flag.String("outputs", "", "Comma-separated files loaded as mapping outputs")
	extractSlices := flag.Bool("extract-slices", false, "Save every slice of every loaded volume along all axes")
	slicesDir := flag.String("slices-dir", "slices", "Directory to save extracted slices")
	serve := flag.Bool("serve", false, "Serve the HTTP API after loading")
	addr := flag.String("addr", "", "HTTP listen address (default: server.addr)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file.nii[.gz] ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	inputs := flag.Args()
	outputFiles := splitList(*outputs)
	if len(inputs) == 0 && len(outputFiles) == 0 && !*serve {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logLevel := logger.LogInfo
	if cfg.Logging.Debug {
		logLevel = logger.LogDebug
	}
	var lg *logger.Logger
	if cfg.Logging.File != "" {
		lg = logger.NewRotating(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxAgeDays, logLevel)
	} else {
		lg = logger.NewStdOut(logLevel)
	}
	defer lg.Close()

	m := metrics.New()
	engine := interaction.NewEngine(interaction.Options{
		Windowing:  cfg.Windowing(),
		ScrollStep: cfg.Display.ScrollStep,
	})

	var store repository.MappingStore
	if cfg.Storage.MappingFile != "" {
		store = repository.NewJSONFileStore(cfg.Storage.MappingFile)
	}
	repo, err := repository.New(repository.Options{
		Trackers: []repository.Tracker{engine},
		Store:    store,
		Logger:   lg,
		Metrics:  m,
	})
	if err != nil {
		log.Fatalf("Failed to open repository: %v", err)
	}
	defer repo.Teardown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader := &upload.Uploader{Repo: repo, Logger: lg, Metrics: m, Workers: cfg.Processing.NumCores}

	startTime := time.Now()
	if *mappingTitle != "" {
		mapping, err := uploader.LoadMapping(ctx, *mappingTitle, inputs, outputFiles)
		if err != nil {
			log.Fatalf("Failed to load mapping %s: %v", *mappingTitle, err)
		}
		lg.Infof("Mapping %s: inputs %v, outputs %v", mapping.Title, mapping.Inputs, mapping.Outputs)
	} else if len(inputs)+len(outputFiles) > 0 {
		if _, err := uploader.LoadFiles(ctx, append(inputs, outputFiles...)); err != nil {
			log.Fatalf("Loading interrupted: %v", err)
		}
	}
	lg.Infof("Loaded %d volumes in %.2f seconds using %d workers", len(repo.List()), time.Since(startTime).Seconds(), cfg.Processing.NumCores)

	// Extract and save slices if requested
	if *extractSlices {
		for _, id := range repo.List() {
			vol, ok := repo.Get(id)
			if !ok {
				continue
			}
			viewer := visualization.NewViewer(vol, engine.Windowing(id))
			for _, o := range models.Orientations {
				dir := filepath.Join(*slicesDir, id, o.String())
				n, err := viewer.SaveSliceSequence(o, dir)
				if err != nil {
					lg.Errorf("Failed to save %s slices of %s: %v", o, id, err)
					continue
				}
				lg.Infof("Saved %d %s slices of %s to %s", n, o, id, dir)
			}
		}
	}

	if !*serve {
		return
	}

	srv := server.New(repo, engine, lg, m)
	defer srv.Close()

	unsubscribe := repo.Subscribe(func(ev repository.Event) {
		lg.Debugf("Repository event %s %s", ev.Kind, ev.Key)
	})
	defer unsubscribe()

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		lg.Errorf("Server stopped: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
