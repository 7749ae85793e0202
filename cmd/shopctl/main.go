package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/storefront/pkg/authstate"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	baseURL  string
	jarPath  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "shopctl",
		Short: "Terminal client for the storefront",
		Long: `shopctl signs in to a storefront and keeps its session in a cookie jar
file. Every shopctl process pointed at the same jar shares one login, the
way browser tabs share cookies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slogx.New(slogx.Config{
				Service: "shopctl",
				Version: version,
				Env:     "cli",
				Level:   opts.logLevel,
				Format:  "text",
				Output:  cmd.ErrOrStderr(),
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", envOr("SHOPCTL_BASE_URL", "http://localhost:8080"), "Storefront address")
	flags.StringVar(&opts.jarPath, "jar", envOr("SHOPCTL_JAR", defaultJarPath()), "Cookie jar file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
		openCmd(opts),
		watchCmd(opts),
		productsCmd(opts),
		ordersCmd(opts),
		checkoutCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func (o *options) client() (*authstate.Client, error) {
	jar, err := authstate.OpenFileJar(o.jarPath)
	if err != nil {
		return nil, fmt.Errorf("open cookie jar: %w", err)
	}
	return authstate.NewClient(o.baseURL, jar), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func defaultJarPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shopctl-jar.json"
	}
	return filepath.Join(dir, "shopctl", "jar.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
