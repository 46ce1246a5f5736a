package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a local SQLite mirror in the current directory",
	Long: `Create .rvd/<name>.db (default .rvd/rvd.db). Commands use it with
--backend sqlite, which makes offline curation and trial runs possible.

Example:
  rvd init
  rvd --backend sqlite import findings.csv --push`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		cwd, err := os.Getwd()
		if err != nil {
			fatalf("failed to get current directory: %v", err)
		}

		dbPath, err := storage.InitProject(cwd, name)
		if err != nil {
			fatalf("%v", err)
		}

		// Opening the database creates its schema
		db, err := storage.NewStorage(context.Background(), &storage.Config{Backend: storage.BackendSQLite, Path: dbPath})
		if err != nil {
			fatalf("failed to initialize database: %v", err)
		}
		_ = db.Close()

		fmt.Printf("\n%s Initialized local mirror\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(dbPath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("rvd --backend sqlite import findings.csv --push"))
		fmt.Printf("  %s\n", gray("rvd --backend sqlite list"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
