package depsentry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/vulndb"
)

func init() {
	dbCmd := &cobra.Command{Use: "db", Short: "Vulnerability database helpers"}
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(&cobra.Command{
		Use:   "import [feed files...]",
		Short: "Load feed files into the postgres database",
		Long: `Import upserts feed files into the database configured with
database.driver=postgres. Without arguments every *.feed.json under the
data directory is imported.`,
		RunE: runDBImport,
	})
	dbCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Open the configured database and count its products",
		RunE:  runDBStatus,
	})
}

func runDBImport(cmd *cobra.Command, args []string) error {
	fc := loadConfig(".")
	dir := dataDir(fc)
	dbCfg := databaseConfig(fc, dir)
	db, err := vulndb.New(dbCfg)
	if err != nil {
		return err
	}
	sqldb, ok := db.(*vulndb.SQLDB)
	if !ok {
		return fmt.Errorf("db import needs database.driver=postgres (configured: %q)", dbCfg.Driver)
	}

	files := args
	if len(files) == 0 {
		matches, err := doublestar.Glob(os.DirFS(dir), vulndb.FeedPattern)
		if err != nil {
			return err
		}
		for _, m := range matches {
			files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no feed files found under %s", dir)
	}

	ctx := cmd.Context()
	if err := sqldb.Open(ctx); err != nil {
		return err
	}
	defer sqldb.Close()
	if err := sqldb.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, f := range files {
		feed, err := vulndb.ReadFeed(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if err := sqldb.Import(ctx, feed); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		fmt.Printf("imported %s (%d products, %d vulnerabilities)\n", f, len(feed.Products), len(feed.Vulnerabilities))
	}
	return nil
}

func runDBStatus(cmd *cobra.Command, _ []string) error {
	fc := loadConfig(".")
	dbCfg := databaseConfig(fc, dataDir(fc))
	db, err := vulndb.New(dbCfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := db.Open(ctx); err != nil {
		return err
	}
	defer db.Close()
	products, err := db.Products(ctx)
	if err != nil {
		return err
	}
	driver := dbCfg.Driver
	if driver == "" {
		driver = "file"
	}
	fmt.Printf("driver: %s\nproducts: %d\n", driver, len(products))
	return nil
}
