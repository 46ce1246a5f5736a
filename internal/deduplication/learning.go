package deduplication

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// Answer is the operator's response to a LabelRequest
type Answer int

const (
	// AnswerUnsure skips the pair without labeling it
	AnswerUnsure Answer = iota
	// AnswerDuplicate labels the pair as the same flaw
	AnswerDuplicate
	// AnswerDistinct labels the pair as different flaws
	AnswerDistinct
	// AnswerFinished ends the labeling session
	AnswerFinished
)

func (a Answer) String() string {
	switch a {
	case AnswerDuplicate:
		return "duplicate"
	case AnswerDistinct:
		return "distinct"
	case AnswerFinished:
		return "finished"
	default:
		return "unsure"
	}
}

// LabelRequest asks for a label on the most informative unlabeled pair
type LabelRequest struct {
	Left  Record
	Right Record

	// Uncertainty is 1 when the current model cannot tell the pair apart
	// and 0 when it is certain either way
	Uncertainty float64

	// Matches and Distincts count the labels collected so far
	Matches   int
	Distincts int

	pair [2]int
}

// Labeler answers label requests. Implementations include the terminal
// prompt of the CLI and scripted oracles in tests.
type Labeler interface {
	Label(ctx context.Context, req LabelRequest) (Answer, error)
}

// LabelerFunc adapts a function to Labeler
type LabelerFunc func(ctx context.Context, req LabelRequest) (Answer, error)

// Label calls f
func (f LabelerFunc) Label(ctx context.Context, req LabelRequest) (Answer, error) {
	return f(ctx, req)
}

// ActiveLearner picks pairs for labeling. It never blocks: callers pull
// requests with Next and push answers with Mark.
type ActiveLearner struct {
	cfg        Config
	records    []Record
	training   *TrainingData
	candidates [][2]int
	asked      map[[2]int]bool
	classifier *Classifier
}

// NewActiveLearner prepares a labeling session over records. Previously
// collected examples in training are kept and extended.
func NewActiveLearner(cfg Config, records []Record, training *TrainingData) *ActiveLearner {
	if training == nil {
		training = &TrainingData{}
	}
	l := &ActiveLearner{
		cfg:        cfg,
		records:    records,
		training:   training,
		candidates: samplePairs(len(records), cfg.SampleSize),
		asked:      map[[2]int]bool{},
	}
	l.refit()
	return l
}

// Training returns the labeled examples collected so far
func (l *ActiveLearner) Training() *TrainingData {
	return l.training
}

// Next returns the next pair to label, or false when every candidate
// pair has been asked
func (l *ActiveLearner) Next() (LabelRequest, bool) {
	best, bestKey := -1, 0.0
	for i, p := range l.candidates {
		if l.asked[p] {
			continue
		}
		key := l.priority(p)
		if best < 0 || key > bestKey {
			best, bestKey = i, key
		}
	}
	if best < 0 {
		return LabelRequest{}, false
	}
	p := l.candidates[best]
	return LabelRequest{
		Left:        l.records[p[0]],
		Right:       l.records[p[1]],
		Uncertainty: l.uncertainty(p),
		Matches:     len(l.training.Match),
		Distincts:   len(l.training.Distinct),
		pair:        p,
	}, true
}

// Mark records the answer to req
func (l *ActiveLearner) Mark(req LabelRequest, answer Answer) {
	l.asked[req.pair] = true
	switch answer {
	case AnswerDuplicate:
		l.training.Add(req.Left, req.Right, true)
	case AnswerDistinct:
		l.training.Add(req.Left, req.Right, false)
	default:
		return
	}
	l.refit()
}

// priority orders candidate pairs. Until both classes have examples the
// most (or least) similar pairs come first; afterwards the pairs the model
// is least sure about.
func (l *ActiveLearner) priority(p [2]int) float64 {
	if l.classifier != nil {
		return l.uncertainty(p)
	}
	sim := similarity(l.cfg.Fields, l.records[p[0]], l.records[p[1]])
	if len(l.training.Match) == 0 {
		return sim
	}
	return -sim
}

func (l *ActiveLearner) uncertainty(p [2]int) float64 {
	var score float64
	if l.classifier != nil {
		score = l.classifier.score(distances(l.cfg.Fields, l.records[p[0]], l.records[p[1]]))
	} else {
		score = similarity(l.cfg.Fields, l.records[p[0]], l.records[p[1]])
	}
	return 1 - 2*math.Abs(score-0.5)
}

func (l *ActiveLearner) refit() {
	if len(l.training.Match) == 0 || len(l.training.Distinct) == 0 {
		l.classifier = nil
		return
	}
	c, err := trainClassifier(l.training.examples(l.cfg.Fields), 2*len(l.cfg.Fields), l.cfg)
	if err != nil {
		slog.Warn("failed to refit classifier", "error", err)
		return
	}
	l.classifier = c
}

// Run drives the session until the labeler answers AnswerFinished or no
// pairs are left
func (l *ActiveLearner) Run(ctx context.Context, labeler Labeler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, ok := l.Next()
		if !ok {
			slog.Debug("no unlabeled pairs left")
			return nil
		}
		answer, err := labeler.Label(ctx, req)
		if err != nil {
			return fmt.Errorf("labeling failed: %w", err)
		}
		if answer == AnswerFinished {
			return nil
		}
		l.Mark(req, answer)
	}
}

// samplePairs lists all index pairs of n records when there are at most
// size of them, otherwise a fixed-seed sample of size distinct pairs
func samplePairs(n, size int) [][2]int {
	total := n * (n - 1) / 2
	if total <= size {
		pairs := make([][2]int, 0, total)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		return pairs
	}
	rng := rand.New(rand.NewPCG(1, 2))
	seen := make(map[[2]int]bool, size)
	pairs := make([][2]int, 0, size)
	for len(pairs) < size {
		i, j := rng.IntN(n), rng.IntN(n)
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		p := [2]int{i, j}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs
}
