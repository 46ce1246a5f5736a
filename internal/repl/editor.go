package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// SaveFunc persists a document that passed validation
type SaveFunc func(ctx context.Context, doc schema.Document) error

// Editor edits one record document field by field:
//
//	path = value   set a field (e.g. severity.cvss-score = 7.5)
//	unset path     remove a field
//	show [path]    print the document or one field
//	validate       list schema problems
//	save           validate, persist and leave
//	quit           leave without saving
type Editor struct {
	rl       LineReader
	out      io.Writer
	doc      schema.Document
	save     SaveFunc
	ctx      context.Context
	saved    bool
	commands map[string]CommandHandler
}

// NewEditor edits a copy of doc
func NewEditor(rl LineReader, out io.Writer, doc schema.Document, save SaveFunc) *Editor {
	e := &Editor{
		rl:       rl,
		out:      out,
		doc:      copyDocument(doc),
		save:     save,
		commands: make(map[string]CommandHandler),
	}
	e.registerCommands()
	return e
}

// Document returns the document being edited
func (e *Editor) Document() schema.Document {
	return e.doc
}

// Run reads commands until save, quit or end of input. It reports whether
// the document was saved.
func (e *Editor) Run(ctx context.Context, title string) (bool, error) {
	e.ctx = ctx
	e.rl.SetPrompt(cyan("edit> "))
	fmt.Fprintf(e.out, "\n%s %s\n", cyan("Editing"), title)
	fmt.Fprintln(e.out, "Type 'help' for available commands, 'save' or 'quit' to leave")

	for {
		if err := ctx.Err(); err != nil {
			return e.saved, err
		}
		line, err := readLine(e.rl)
		if err == io.EOF {
			fmt.Fprintln(e.out, yellow("Leaving without saving"))
			return e.saved, nil
		}
		if err != nil {
			return e.saved, err
		}

		if err := e.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return e.saved, nil
			}
			fmt.Fprintf(e.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (e *Editor) processInput(line string) error {
	if path, value, ok := strings.Cut(line, "="); ok {
		return e.set(strings.TrimSpace(path), strings.TrimSpace(value))
	}
	parts := strings.Fields(line)
	if handler, ok := e.commands[parts[0]]; ok {
		return handler(parts[1:])
	}
	return fmt.Errorf("unknown command %q (type 'help')", parts[0])
}

// registerCommands registers all built-in commands
func (e *Editor) registerCommands() {
	e.commands["help"] = e.cmdHelp
	e.commands["?"] = e.cmdHelp
	e.commands["show"] = e.cmdShow
	e.commands["unset"] = e.cmdUnset
	e.commands["validate"] = e.cmdValidate
	e.commands["save"] = e.cmdSave
	e.commands["quit"] = e.cmdQuit
	e.commands["exit"] = e.cmdQuit
}

func (e *Editor) cmdHelp(args []string) error {
	commands := []struct {
		name string
		desc string
	}{
		{"path = value", "Set a field, e.g. flaw.phase = testing"},
		{"unset path", "Remove a field"},
		{"show [path]", "Print the document or one field"},
		{"validate", "List schema problems"},
		{"save", "Validate and save, then leave"},
		{"quit, exit", "Leave without saving"},
	}
	fmt.Fprintf(e.out, "\n%s\n", cyan("Available Commands:"))
	for _, c := range commands {
		fmt.Fprintf(e.out, "  %-14s %s\n", green(c.name), c.desc)
	}
	fmt.Fprintln(e.out)
	return nil
}

func (e *Editor) cmdShow(args []string) error {
	if len(args) == 0 {
		data, err := types.EncodeDocument(e.doc)
		if err != nil {
			return err
		}
		fmt.Fprint(e.out, string(data))
		return nil
	}
	v, ok := schema.Get(e.doc, args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	data, err := yaml.Marshal(map[string]any{args[0]: v})
	if err != nil {
		return err
	}
	fmt.Fprint(e.out, string(data))
	return nil
}

func (e *Editor) cmdUnset(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unset path")
	}
	if !schema.Unset(e.doc, args[0]) {
		return fmt.Errorf("%s is not set", args[0])
	}
	return nil
}

func (e *Editor) cmdValidate(args []string) error {
	_, problems := schema.Validate(e.doc)
	if len(problems) == 0 {
		fmt.Fprintf(e.out, "%s document is valid\n", green("✓"))
		return nil
	}
	e.printProblems(problems)
	return nil
}

func (e *Editor) cmdSave(args []string) error {
	normalized, problems := schema.Validate(e.doc)
	if len(problems) > 0 {
		e.printProblems(problems)
		return fmt.Errorf("not saved: fix the problems above or quit")
	}
	if err := e.save(e.ctx, normalized); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	e.doc = normalized
	e.saved = true
	fmt.Fprintf(e.out, "%s saved\n", green("✓"))
	return errExit
}

func (e *Editor) cmdQuit(args []string) error {
	return errExit
}

func (e *Editor) printProblems(problems schema.Errors) {
	for _, path := range problems.Paths() {
		fmt.Fprintf(e.out, "%s %s: %s\n", red("✗"), path, strings.Join(problems[path], "; "))
	}
}

// set parses raw according to the declared kind of path. Paths outside
// the schema take any YAML value.
func (e *Editor) set(path, raw string) error {
	if path == "" {
		return fmt.Errorf("usage: path = value")
	}
	if _, declared := schema.RVD.Lookup(path); !declared {
		fmt.Fprintf(e.out, "%s %s is not a schema field, it will be kept as an extra field\n", yellow("⚠"), path)
	}
	value, err := schema.RVD.ParseValue(path, raw, ",")
	if err != nil {
		return err
	}
	return schema.Set(e.doc, path, value)
}

func copyDocument(doc schema.Document) schema.Document {
	out := make(schema.Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	}
	return v
}
