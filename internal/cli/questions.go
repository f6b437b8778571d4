package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FillInitOptionsInteractive prompts the user to confirm or override defaults.
// If stdin is not interactive, it will keep the provided defaults.
func FillInitOptionsInteractive(opts *InitOptions) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Source wiki URL [%s]: ", opts.BaseURL)
	if s, _ := reader.ReadString('\n'); strings.TrimSpace(s) != "" {
		opts.BaseURL = strings.TrimSpace(s)
	}

	fmt.Printf("Render service URL (empty for local assembly only) [%s]: ", opts.ServeURL)
	if s, _ := reader.ReadString('\n'); strings.TrimSpace(s) != "" {
		opts.ServeURL = strings.TrimSpace(s)
	}

	defWriter := opts.Writer
	if defWriter == "" {
		defWriter = "rl"
	}
	fmt.Printf("Default writer [%s]: ", defWriter)
	if s, _ := reader.ReadString('\n'); strings.TrimSpace(s) != "" {
		opts.Writer = strings.TrimSpace(s)
	} else if opts.Writer == "" {
		opts.Writer = defWriter
	}

	fmt.Printf("Session store directory [%s]: ", opts.Store)
	if s, _ := reader.ReadString('\n'); strings.TrimSpace(s) != "" {
		opts.Store = strings.TrimSpace(s)
	}
}
