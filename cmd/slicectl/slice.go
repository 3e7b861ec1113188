package main

import (
	"context"
	"encoding/json"
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

var (
	sliceFixturePath    string
	sliceRepoID         string
	sliceEntrySymbols   []string
	sliceTaskText       string
	sliceStackTrace     []string
	sliceFailingTest    string
	sliceEditedFiles    []string
	sliceMaxCards       int
	sliceMaxTokens      int
	sliceCardDetail     string
	sliceMinConfidence  float64
)

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Build a graph slice from a fixture store and print it as JSON",
	RunE:  runSlice,
}

func init() {
	sliceCmd.Flags().StringVar(&sliceFixturePath, "fixture", "", "path to a YAML fixture store (required)")
	sliceCmd.Flags().StringVar(&sliceRepoID, "repo", "", "repo ID to slice (required)")
	sliceCmd.Flags().StringArrayVar(&sliceEntrySymbols, "entry", nil, "entry symbol ID (repeatable)")
	sliceCmd.Flags().StringVar(&sliceTaskText, "task-text", "", "free-text task description")
	sliceCmd.Flags().StringArrayVar(&sliceStackTrace, "stack-trace", nil, "stack frame as path:line (repeatable)")
	sliceCmd.Flags().StringVar(&sliceFailingTest, "failing-test", "", "failing test's file path")
	sliceCmd.Flags().StringArrayVar(&sliceEditedFiles, "edited-file", nil, "edited file path (repeatable)")
	sliceCmd.Flags().IntVar(&sliceMaxCards, "max-cards", 0, "budget: max cards (0 = config default)")
	sliceCmd.Flags().IntVar(&sliceMaxTokens, "max-tokens", 0, "budget: max estimated tokens (0 = config default)")
	sliceCmd.Flags().StringVar(&sliceCardDetail, "detail", "deps", "card detail level: minimal|signature|deps|compact|full")
	sliceCmd.Flags().Float64Var(&sliceMinConfidence, "min-confidence", 0, "minimum edge confidence (0 = adaptive default)")

	_ = sliceCmd.MarkFlagRequired("fixture")
	_ = sliceCmd.MarkFlagRequired("repo")

	rootCmd.AddCommand(sliceCmd)
}

func runSlice(cmd *cobra.Command, args []string) error {
	st, err := fixturestore.Load(sliceFixturePath)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}

	cfg := config.DefaultConfig()
	logger := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.WarnLevel, Output: os.Stderr})
	cache := slicecache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMs)*time.Millisecond, false)
	o := orchestrator.New(st, cfg, cache, logger)

	req := model.SliceRequest{
		RepoID:          sliceRepoID,
		TaskText:        sliceTaskText,
		StackTrace:      sliceStackTrace,
		FailingTestPath: sliceFailingTest,
		EditedFiles:     sliceEditedFiles,
		EntrySymbols:    sliceEntrySymbols,
		CardDetail:      model.DetailLevel(sliceCardDetail),
		Budget:          model.Budget{MaxCards: sliceMaxCards, MaxEstimatedTokens: sliceMaxTokens},
		MinConfidence:   sliceMinConfidence,
	}

	slice, sliceErr := o.BuildSlice(context.Background(), req)
	if sliceErr != nil {
		data, _ := json.MarshalIndent(sliceErr, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return fmt.Errorf("slice build failed: %s", sliceErr.Code)
	}

	data, err := json.MarshalIndent(slice, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal slice: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
