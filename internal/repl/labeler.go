package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
)

// Labeler answers active-learning label requests on the terminal
type Labeler struct {
	rl     LineReader
	out    io.Writer
	fields []deduplication.FieldSpec
}

// NewLabeler shows fields of each pair on out and reads answers from rl
func NewLabeler(rl LineReader, out io.Writer, fields []deduplication.FieldSpec) *Labeler {
	return &Labeler{rl: rl, out: out, fields: fields}
}

// Label shows the pair and reads y/n/u/f until a valid answer is given.
// End of input finishes the session.
func (l *Labeler) Label(ctx context.Context, req deduplication.LabelRequest) (deduplication.Answer, error) {
	l.showPair(req)
	l.rl.SetPrompt(green("Duplicate? (y)es / (n)o / (u)nsure / (f)inished > "))

	for {
		if err := ctx.Err(); err != nil {
			return deduplication.AnswerFinished, err
		}
		line, err := readLine(l.rl)
		if err == io.EOF {
			return deduplication.AnswerFinished, nil
		}
		if err != nil {
			return deduplication.AnswerFinished, err
		}
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		fmt.Fprintf(l.out, "%s answer y, n, u or f\n", yellow("⚠"))
	}
}

func parseAnswer(line string) (deduplication.Answer, bool) {
	switch strings.ToLower(line) {
	case "y", "yes":
		return deduplication.AnswerDuplicate, true
	case "n", "no":
		return deduplication.AnswerDistinct, true
	case "u", "unsure":
		return deduplication.AnswerUnsure, true
	case "f", "finished", "done":
		return deduplication.AnswerFinished, true
	}
	return deduplication.AnswerUnsure, false
}

func (l *Labeler) showPair(req deduplication.LabelRequest) {
	fmt.Fprintln(l.out)
	fmt.Fprintf(l.out, "%s #%d vs #%d %s\n", cyan("Pair"), req.Left.ID, req.Right.ID,
		gray(fmt.Sprintf("(uncertainty %.2f, %d duplicates / %d distinct labeled)", req.Uncertainty, req.Matches, req.Distincts)))
	for _, f := range l.fields {
		fmt.Fprintf(l.out, "  %s\n", bold(f.Name))
		fmt.Fprintf(l.out, "    #%-6d %s\n", req.Left.ID, featureText(req.Left, f.Name))
		fmt.Fprintf(l.out, "    #%-6d %s\n", req.Right.ID, featureText(req.Right, f.Name))
	}
}

func featureText(r deduplication.Record, name string) string {
	f, ok := r.Features[name]
	if !ok || f.Missing {
		return gray("<missing>")
	}
	return f.Value
}
