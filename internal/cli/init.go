package cli

import (
	"fmt"
	"path/filepath"

	"github.com/pagefold/bindery/internal/utils"
)

// InitOptions captures options for scaffolding a new bindery project
type InitOptions struct {
	Path     string // project directory, default "."
	BaseURL  string // source wiki origin
	ServeURL string // external render service endpoint, optional
	Writer   string // default output writer
	Store    string // session store directory, default "sessions"
}

// Init scaffolds a bindery project: a bindery.toml, the session store
// directory and a sample saved book page to build from.
func Init(opts InitOptions) error {
	if opts.Path == "" {
		opts.Path = "."
	}
	if opts.Writer == "" {
		opts.Writer = "rl"
	}
	if opts.Store == "" {
		opts.Store = "sessions"
	}

	configPath := filepath.Join(opts.Path, "bindery.toml")
	if utils.FileExists(configPath) {
		return fmt.Errorf("'%s' already exists", configPath)
	}

	binderyToml := []byte(fmt.Sprintf(`[wiki]
base-url = "%s"

[render]
serve-url = "%s"
default-writer = "%s"

[store]
type = "disk"
path = "%s"
`, opts.BaseURL, opts.ServeURL, opts.Writer, opts.Store))
	if err := utils.WriteFile(configPath, binderyToml); err != nil {
		return err
	}

	if err := utils.CreateDirAll(filepath.Join(opts.Path, opts.Store)); err != nil {
		return err
	}

	sample := []byte(`== My Book ==
=== A Collection of Articles ===
| setting-papersize = a4

;Getting Started
:[[Main Page]]
`)
	if err := utils.WriteFile(filepath.Join(opts.Path, "books", "example.wiki"), sample); err != nil {
		return err
	}

	gitignore := []byte(fmt.Sprintf("%s/\n", opts.Store))
	_ = utils.WriteFile(filepath.Join(opts.Path, ".gitignore"), gitignore)

	return nil
}
