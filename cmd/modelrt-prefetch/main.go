// Command modelrt-prefetch pre-loads every local-provider model named in a
// catalog file so first-use latency is paid at deploy time instead of at
// the first real request. Remote-provider models have no local weights to
// pre-load and are skipped; the runtime would load them lazily regardless.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/modelrt"
	"github.com/inferray/modelrt/providers/localvec"
)

// cacheDirEnv is the environment variable consulted for the cache root
// when --cache-dir is not passed.
const cacheDirEnv = "MODELRT_CACHE_DIR"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cacheDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "modelrt-prefetch <catalog.json>",
		Short: "Pre-download and cache local-provider models from a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], cacheDir, dryRun)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the cache root directory (also settable via "+cacheDirEnv)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be loaded without doing it")
	return cmd
}

func run(catalogPath, cacheDir string, dryRun bool) error {
	if cacheDir != "" {
		os.Setenv(cacheDirEnv, cacheDir)
		fmt.Printf("cache root : %s\n", cacheDir)
	} else if dir, ok := os.LookupEnv(cacheDirEnv); ok {
		fmt.Printf("cache root : %s  (from %s)\n", dir, cacheDirEnv)
	} else {
		fmt.Println("cache root : (unset, provider default)")
	}

	allSpecs, err := api.CatalogFromFile(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog %q: %w", catalogPath, err)
	}
	fmt.Printf("catalog    : %d model(s) from %s\n\n", len(allSpecs), catalogPath)

	var localSpecs, remoteSpecs []api.ModelAliasSpec
	for _, spec := range allSpecs {
		if hasPrefix(spec.ProviderID, "local/") {
			localSpecs = append(localSpecs, spec)
		} else {
			remoteSpecs = append(remoteSpecs, spec)
		}
	}

	for _, spec := range remoteSpecs {
		fmt.Printf("  skip  %s  (%s)  — remote provider, nothing to cache\n", spec.Alias, spec.ProviderID)
	}

	if len(localSpecs) == 0 {
		fmt.Println("\nNo local models to prefetch.")
		return nil
	}

	if dryRun {
		fmt.Println("\nDry run — would load:")
		for _, spec := range localSpecs {
			fmt.Printf("  %s  (%s)  provider=%s\n", spec.Alias, spec.ModelID, spec.ProviderID)
		}
		return nil
	}

	builder := modelrt.NewBuilder()
	registered := make(map[string]bool)

	uniqueProviders := make(map[string]bool)
	for _, spec := range localSpecs {
		uniqueProviders[spec.ProviderID] = true
	}
	providerIDs := make([]string, 0, len(uniqueProviders))
	for id := range uniqueProviders {
		providerIDs = append(providerIDs, id)
	}
	sort.Strings(providerIDs)

	for _, providerID := range providerIDs {
		switch providerID {
		case localvec.ProviderID:
			builder.RegisterProvider(localvec.New())
			registered[providerID] = true
		default:
			fmt.Fprintf(os.Stderr, "  warn  %s: unknown local provider, skipping\n", providerID)
		}
	}

	eagerSpecs := make([]api.ModelAliasSpec, 0, len(localSpecs))
	for _, spec := range localSpecs {
		if !registered[spec.ProviderID] {
			continue
		}
		spec.Warmup = api.WarmupEager
		spec.Required = true
		eagerSpecs = append(eagerSpecs, spec)
	}

	if len(eagerSpecs) == 0 {
		fmt.Println("\nNo providers available for the requested models.")
		return nil
	}

	fmt.Printf("Prefetching %d model(s):\n", len(eagerSpecs))
	for _, spec := range eagerSpecs {
		fmt.Printf("  →  %s  (%s)\n", spec.Alias, spec.ModelID)
	}
	fmt.Println()

	builder.Catalog(eagerSpecs)
	if _, err := builder.Build(context.Background()); err != nil {
		return fmt.Errorf("prefetch failed: %w", err)
	}

	fmt.Println("\nAll models cached successfully.")
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
