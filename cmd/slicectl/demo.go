package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"slicecore/internal/config"
	"slicecore/internal/logging"
	"slicecore/internal/model"
	"slicecore/internal/orchestrator"
	"slicecore/internal/slicecache"
	"slicecore/internal/store/fixturestore"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the slice pipeline against a small built-in graph and summarize it",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func writeTempFixture(yaml string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "slicectl-demo-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("create temp fixture: %w", err)
	}
	if _, err := f.WriteString(yaml); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp fixture: %w", err)
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	yaml := `
versions:
  demo: v1
symbols:
  - {symbolId: handleRequest, fileId: f1, repoId: demo, kind: function, name: HandleRequest, exported: true, summary: "entry point for inbound requests"}
  - {symbolId: validateInput, fileId: f1, repoId: demo, kind: function, name: ValidateInput, exported: true, summary: "validates the parsed request body"}
  - {symbolId: writeResponse, fileId: f2, repoId: demo, kind: function, name: WriteResponse, exported: true, summary: "serializes and writes the response"}
  - {symbolId: logError, fileId: f3, repoId: demo, kind: function, name: LogError, exported: false, summary: "internal error logging helper"}
edges:
  - {from: handleRequest, to: validateInput, type: call, weight: 1.0, confidence: 1.0}
  - {from: handleRequest, to: writeResponse, type: call, weight: 1.0, confidence: 0.9}
  - {from: validateInput, to: logError, type: call, weight: 1.0, confidence: 0.6}
files:
  - {fileId: f1, relPath: pkg/handler.go, language: go}
  - {fileId: f2, relPath: pkg/response.go, language: go}
  - {fileId: f3, relPath: pkg/logging.go, language: go}
`
	path, cleanup, err := writeTempFixture(yaml)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := fixturestore.Load(path)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	logger := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.InfoLevel})
	cache := slicecache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMs)*time.Millisecond, false)
	o := orchestrator.New(st, cfg, cache, logger)

	req := model.SliceRequest{
		RepoID:       "demo",
		EntrySymbols: []string{"handleRequest"},
		Budget:       model.Budget{MaxCards: 10, MaxEstimatedTokens: 2000},
		CardDetail:   model.DetailDeps,
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	if sliceErr != nil {
		return fmt.Errorf("demo slice failed: %s: %s", sliceErr.Code, sliceErr.Message)
	}

	fmt.Printf("repo=%s version=%s cards=%d edges=%d truncated=%v\n",
		slice.RepoID, slice.VersionID, len(slice.Cards), len(slice.Edges), slice.Truncation != nil)
	for _, c := range slice.Cards {
		fmt.Printf("  - %s (%s) detail=%s etag=%s\n", c.Name, c.Kind, c.DetailLevel, c.ETag[:8])
	}
	return nil
}
