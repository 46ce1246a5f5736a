package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/labels"
	"github.com/aliasrobotics/RVD-sub000/internal/repl"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	dupTrain  bool
	dupPush   bool
	dupLabels []string
	dupState  string
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find and mark duplicate flaws",
	Long: `Group records describing the same flaw into duplicate-sets.

The pairwise classifier is loaded from the settings file. With --train, an
active learning session asks you to label the most uncertain pairs first
(y/n/u, f to finish); labels are kept in the training file and reused by
later sessions. Without settings and without --train nothing can be scored.

With --push, every member of a set except its primary is labeled duplicate
and gets a "Duplicate of #<primary>" comment.

Example:
  rvd duplicates --train
  rvd duplicates --label vulnerability
  rvd duplicates --recall-weight 2 --push`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		if dupTrain || dupPush {
			acquireLock("duplicates")
		}

		records := loadRecords(ctx, store, types.RecordFilter{Labels: dupLabels, State: dupState})
		parsed, malformed := parseRecords(records)
		if len(malformed) > 0 {
			fmt.Printf("%s %d malformed records skipped (see 'rvd validate')\n", yellow("⚠"), len(malformed))
		}
		corpus := dedupCorpus(parsed)

		var engine *deduplication.Engine
		var err error
		if dupTrain {
			engine, err = trainEngine(ctx, corpus)
		} else {
			engine, err = loadEngine()
		}
		if err != nil {
			fatalf("%v", err)
		}

		result, err := engine.Partition(corpus)
		if err != nil {
			fatalf("deduplication failed: %v", err)
		}
		if err := result.Validate(); err != nil {
			fatalf("inconsistent deduplication result: %v", err)
		}
		printDuplicateSets(result)

		if !dupPush {
			return
		}
		byID := make(map[int]*types.Record, len(parsed))
		for _, p := range parsed {
			byID[p.rec.ID] = p.rec
		}
		marked, err := pushDuplicates(ctx, store, result, byID)
		if err != nil {
			fatalf("%v (%d records marked before the failure)", err, marked)
		}
		fmt.Printf("%s %d records labeled %s\n", green("✓"), marked, types.LabelDuplicate)
	},
}

func loadEngine() (*deduplication.Engine, error) {
	settings, err := deduplication.LoadSettings(cfg.Dedup.SettingsPath)
	if errors.Is(err, deduplication.ErrNoSettings) {
		return nil, fmt.Errorf("%w: %s does not exist", err, cfg.Dedup.SettingsPath)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded deduplication settings", "model", settings.ModelID, "trained_at", settings.TrainedAt)
	return deduplication.NewEngine(cfg.Dedup, settings)
}

// trainEngine runs a labeling session on the terminal, persists the labels
// and the fitted settings
func trainEngine(ctx context.Context, corpus []deduplication.Record) (*deduplication.Engine, error) {
	training, err := deduplication.LoadTrainingData(cfg.Dedup.TrainingPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("%s %d records, %d labeled pairs from earlier sessions\n", cyan("Training"), len(corpus), training.Len())

	rl, err := repl.NewReadline("> ")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rl.Close() }()

	learner := deduplication.NewActiveLearner(cfg.Dedup, corpus, training)
	runErr := learner.Run(ctx, repl.NewLabeler(rl, os.Stdout, cfg.Dedup.Fields))

	if err := learner.Training().Save(cfg.Dedup.TrainingPath); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}

	engine, err := deduplication.Fit(cfg.Dedup, corpus, learner.Training())
	if err != nil {
		return nil, err
	}
	if err := engine.Settings().Save(cfg.Dedup.SettingsPath); err != nil {
		return nil, err
	}
	fmt.Printf("%s settings written to %s\n", green("✓"), cfg.Dedup.SettingsPath)
	return engine, nil
}

func printDuplicateSets(result *deduplication.Result) {
	if len(result.Sets) == 0 {
		fmt.Println(gray("No duplicates found"))
		return
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Set", "Primary", "Members", "To mark"})
	for i, set := range result.Sets {
		members := make([]string, 0, len(set.Members))
		for _, m := range set.Members {
			s := fmt.Sprintf("#%d (%.2f)", m.ID, m.Score)
			if m.Duplicate {
				s += " dup"
			}
			members = append(members, s)
		}
		primary := "-"
		if set.HasPrimary {
			primary = fmt.Sprintf("#%d", set.Primary)
		}
		tw.AppendRow(table.Row{i + 1, primary, strings.Join(members, ", "), len(set.ToMark())})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("threshold %.3f, %d candidate pairs", result.Threshold, result.Stats.CandidatePairs), result.Stats.ToMark})
	fmt.Println(tw.Render())
}

// pushDuplicates labels the non-primary members of every set
func pushDuplicates(ctx context.Context, store labels.Storage, result *deduplication.Result, byID map[int]*types.Record) (int, error) {
	marked := 0
	for _, set := range result.Sets {
		for _, id := range set.ToMark() {
			rec, ok := byID[id]
			if !ok {
				return marked, fmt.Errorf("record #%d is not in the corpus", id)
			}
			changed, err := labels.MarkDuplicate(ctx, store, rec, set.Primary)
			if err != nil {
				return marked, err
			}
			if changed {
				marked++
			}
		}
	}
	return marked, nil
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)
	duplicatesCmd.Flags().BoolVar(&dupTrain, "train", false, "Label pairs interactively and retrain the classifier")
	duplicatesCmd.Flags().BoolVar(&dupPush, "push", false, "Label duplicates on the store")
	duplicatesCmd.Flags().Float64("recall-weight", 0, "Weight of recall against precision when choosing the threshold (default 1.5)")
	duplicatesCmd.Flags().StringSliceVar(&dupLabels, "label", nil, "Only records carrying this label (repeatable)")
	duplicatesCmd.Flags().StringVar(&dupState, "state", types.StateOpen, "Record state: open, closed or all")
}
