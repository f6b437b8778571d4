package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pagefold/bindery/internal/book"
	"github.com/pagefold/bindery/internal/cli"
	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/config"
	"github.com/pagefold/bindery/internal/fetch"
	"github.com/pagefold/bindery/internal/parser"
	"github.com/pagefold/bindery/internal/rendering"
	"github.com/pagefold/bindery/internal/server"
	"github.com/pagefold/bindery/internal/utils"
)

func main() {
	// Define subcommands
	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	buildConfig := buildCmd.String("config", "bindery.toml", "Path to config file")
	buildBook := buildCmd.String("book", "", "Path to a saved book page (wikitext)")
	buildOut := buildCmd.String("o", "book.html", "Output HTML file")

	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	initPath := initCmd.String("path", ".", "Project directory (or pass as positional)")
	initBaseURL := initCmd.String("base-url", "", "Source wiki URL")
	initServeURL := initCmd.String("serve-url", "", "External render service URL")
	initWriter := initCmd.String("writer", "rl", "Default output writer")
	initStore := initCmd.String("store", "sessions", "Session store directory")
	initYes := initCmd.Bool("yes", false, "Skip interactive prompts and use provided/default values")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveConfig := serveCmd.String("config", "bindery.toml", "Path to config file")
	serveAddr := serveCmd.String("addr", "", "Listen address override, e.g. :8475")

	cleanCmd := flag.NewFlagSet("clean", flag.ExitOnError)
	cleanConfig := cleanCmd.String("config", "bindery.toml", "Path to config file")
	cleanStore := cleanCmd.String("store", "", "Session store directory to clean")

	if len(os.Args) < 2 {
		fmt.Println("Usage: bindery [command]")
		fmt.Println("Commands:")
		fmt.Println("  build      Assemble a saved book page into an HTML book")
		fmt.Println("  init       Initialize a new bindery project")
		fmt.Println("  serve      Run the collection and rendering server")
		fmt.Println("  clean      Clean the session store")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		buildCmd.Parse(os.Args[2:])
		handleBuild(*buildConfig, *buildBook, *buildOut)

	case "init":
		initCmd.Parse(os.Args[2:])
		handleInit(initCmd, *initPath, *initBaseURL, *initServeURL, *initWriter, *initStore, *initYes)

	case "serve":
		serveCmd.Parse(os.Args[2:])
		handleServe(*serveConfig, *serveAddr)

	case "clean":
		cleanCmd.Parse(os.Args[2:])
		handleClean(*cleanConfig, *cleanStore)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Printf("Warning: could not load config file: %v. Using defaults.", err)
		cfg = config.NewDefaultConfig()
		cfg.UpdateFromEnv()
	}
	return cfg
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func licenseFrom(cfg *config.Config) *collection.LicenseInfo {
	if cfg.License.Name == "" && cfg.License.URL == "" {
		return nil
	}
	return &collection.LicenseInfo{Name: cfg.License.Name, URL: cfg.License.URL}
}

func newWikiClient(cfg *config.Config, logger *slog.Logger) *fetch.Client {
	return fetch.NewClient(fetch.Options{
		BaseURL:     cfg.Wiki.BaseURL,
		ScriptPath:  cfg.Wiki.ScriptPath,
		RestPath:    cfg.Wiki.RestPath,
		Concurrency: cfg.Wiki.Concurrency,
		UserAgent:   cfg.Wiki.UserAgent,
		License:     licenseFrom(cfg),
	}, nil, logger)
}

func renderServiceConfig(cfg *config.Config) rendering.Config {
	return rendering.Config{
		ServeURL:              cfg.Render.ServeURL,
		WriterToURL:           cfg.Render.WriterToURL,
		CommandToURL:          cfg.Render.CommandToURL,
		Credentials:           cfg.Render.Credentials,
		BaseURL:               cfg.Wiki.BaseURL + cfg.Wiki.ScriptPath,
		ScriptExtension:       cfg.Render.ScriptExtension,
		Language:              cfg.Wiki.Language,
		LicenseName:           cfg.License.Name,
		LicenseURL:            cfg.License.URL,
		RestBaseURL:           cfg.Render.RestBaseURL,
		ParsoidURL:            cfg.Render.ParsoidURL,
		ParsoidPrefix:         cfg.Render.ParsoidPrefix,
		ParsoidDomain:         cfg.Render.ParsoidDomain,
		ContentTypeToFilename: cfg.Render.ContentTypeToFilename,
	}
}

// handleBuild assembles a saved book page into a standalone HTML document.
func handleBuild(configPath, bookPath, outPath string) {
	if bookPath == "" {
		log.Fatal("build requires -book pointing at a saved book page")
	}
	cfg := loadConfig(configPath)
	if cfg.Wiki.BaseURL == "" {
		log.Fatal("wiki.base-url is not configured")
	}
	logger := newLogger()
	client := newWikiClient(cfg, logger)

	content, err := utils.ReadToString(bookPath)
	if err != nil {
		log.Fatalf("Failed to read book page: %v", err)
	}
	page := parser.ParseBookPage(content)

	ctx := context.Background()
	coll := collection.New()
	coll.Title = page.Title
	coll.Subtitle = page.Subtitle
	for key, value := range page.Settings {
		coll.Settings[key] = value
	}

	for _, entry := range page.Entries {
		if entry.Type == "chapter" {
			coll.Items = append(coll.Items, &collection.Chapter{Title: entry.Title})
			continue
		}
		info, err := client.PageInfo(ctx, entry.Title)
		if err != nil {
			log.Fatalf("Failed to look up %q: %v", entry.Title, err)
		}
		if !info.Exists {
			log.Printf("Warning: skipping %q, page does not exist", entry.Title)
			continue
		}
		revision := entry.Revision
		if revision == "" {
			revision = info.LatestRevision
		}
		coll.Items = append(coll.Items, &collection.Article{
			Title:          entry.Title,
			ContentType:    "text/x-wiki",
			Revision:       revision,
			Latest:         info.LatestRevision,
			Timestamp:      info.Timestamp,
			URL:            info.URL,
			CurrentVersion: entry.Revision == "",
		})
	}

	title := coll.Title
	if title == "" {
		title = "Collection"
	}
	fmt.Printf("Building book: %s\n", title)
	fmt.Printf("Articles: %d\n", coll.ArticleCount())

	pages, err := client.FetchPages(ctx, coll)
	if err != nil {
		log.Fatalf("Failed to fetch pages: %v", err)
	}
	meta, err := client.FetchMetadata(ctx, coll, pages)
	if err != nil {
		log.Fatalf("Failed to fetch metadata: %v", err)
	}

	renderer, err := book.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to set up renderer: %v", err)
	}
	assembled, err := renderer.Render(coll, pages, meta)
	if err != nil {
		log.Fatalf("Failed to assemble book: %v", err)
	}

	if err := utils.WriteFile(outPath, []byte(book.WrapDocument(title, assembled.HTML))); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Book built successfully to %s!\n", outPath)
}

func handleInit(initCmd *flag.FlagSet, path, baseURL, serveURL, writer, store string, yes bool) {
	// Prefer positional arg for the project directory if present
	if initCmd.NArg() >= 1 {
		path = initCmd.Arg(0)
	}

	opts := cli.InitOptions{
		Path:     path,
		BaseURL:  baseURL,
		ServeURL: serveURL,
		Writer:   writer,
		Store:    store,
	}

	if !yes {
		cli.FillInitOptionsInteractive(&opts)
	}

	if err := cli.Init(opts); err != nil {
		log.Fatalf("Failed to initialize project: %v", err)
	}

	fmt.Printf("\nSuccessfully created project in '%s'\n", opts.Path)
	fmt.Println("Next steps:")
	fmt.Println("  edit bindery.toml           # point at your wiki")
	fmt.Println("  bindery build -book books/example.wiki")
	fmt.Println("  bindery serve               # run the collection server")
}

// handleServe wires the full stack and runs the HTTP server.
func handleServe(configPath, addrOverride string) {
	cfg := loadConfig(configPath)
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger()
	client := newWikiClient(cfg, logger)

	var store collection.Store
	switch cfg.Store.Type {
	case "memory":
		store = collection.NewMemoryStore()
	default:
		store = collection.NewDiskStore(cfg.Store.Path)
	}

	manager := collection.NewManager(store, client, cfg.Limits.MaxArticles, logger)
	suggester := collection.NewSuggester(client, cfg.Limits.MaxSuggestions)

	renderer, err := book.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to set up renderer: %v", err)
	}
	mediator := rendering.NewMediator(
		renderServiceConfig(cfg),
		client,
		renderer,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		nil,
		logger,
	)

	srv := server.New(cfg, manager, suggester, mediator, client, logger)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func handleClean(configPath, storeOverride string) {
	cfg := loadConfig(configPath)
	storeDir := storeOverride
	if storeDir == "" {
		storeDir = cfg.Store.Path
	}
	if !utils.DirExists(storeDir) {
		fmt.Printf("Nothing to clean; directory '%s' does not exist.\n", storeDir)
		return
	}
	// Summarize contents
	var files, dirs int
	var bytes int64
	filepath.Walk(storeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != storeDir {
				dirs++
			}
			return nil
		}
		files++
		bytes += info.Size()
		return nil
	})
	if err := utils.RemoveAll(storeDir); err != nil {
		log.Fatalf("Failed to clean: %v", err)
	}
	fmt.Printf("Removed %d files, %d directories, %s from '%s'.\n", files, dirs, humanBytes(bytes), storeDir)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	val := float64(n) / float64(div)
	suffix := []string{"KiB", "MiB", "GiB", "TiB"}
	if exp >= len(suffix) {
		return fmt.Sprintf("%.1f PiB", val/float64(unit))
	}
	return fmt.Sprintf("%.1f %s", val, suffix[exp])
}
