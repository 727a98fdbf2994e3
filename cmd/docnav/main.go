// Command docnav is a thin CLI front end over the navigation engine:
// enough to resolve a path, search one or more crates, and list what's
// available, without pulling in a TUI, HTTP server, or MCP handler.
// Those are all out of scope per spec.md §1; this is just a driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alexisbouchez/docnav/cachefs"
	"github.com/alexisbouchez/docnav/crate"
	"github.com/alexisbouchez/docnav/navigator"
	"github.com/alexisbouchez/docnav/provider"
	"github.com/alexisbouchez/docnav/search"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "resolve":
		runResolve(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: docnav <resolve|search|list> [flags]")
	fmt.Println("  resolve <path>        resolve a path like std::vec::Vec or tokio@1.40::spawn")
	fmt.Println("  search <query>        search one or more crates")
	fmt.Println("  list                  list every crate available across providers")
}

// newNavigator wires the three SourceProviders in the fixed priority
// order spec.md §4.4 requires: Std, Local, Remote.
func newNavigator() (*navigator.Navigator, *cachefs.Cache) {
	cacheBase := cachefs.DefaultBase()
	cache, err := cachefs.New(cacheBase)
	if err != nil {
		log.Fatalf("docnav: opening cache at %s: %v", cacheBase, err)
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("docnav: getting working directory: %v", err)
	}

	nav := navigator.New(
		provider.NewStdSource().WithCache(cache),
		provider.NewLocalSource(wd).WithCache(cache),
		provider.NewRemoteSource(cache),
	)
	return nav, cache
}

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Println("Usage: docnav resolve <path>")
		os.Exit(1)
	}

	nav, _ := newNavigator()
	ctx := context.Background()

	resolved, suggestions, err := nav.ResolvePath(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if len(suggestions) > 0 {
			fmt.Fprintln(os.Stderr, "did you mean:")
			for _, s := range suggestions {
				fmt.Fprintf(os.Stderr, "  %s\n", s)
			}
		}
		os.Exit(1)
	}

	item := resolved.Handle.Item()
	fmt.Printf("%s\n", resolved.CanonicalPath)
	fmt.Printf("  kind: %s\n", item.Kind)
	if item.Docs != "" {
		fmt.Printf("  docs: %s\n", firstLine(item.Docs))
	}
	if crate.IsDeprecated(item.Docs) {
		fmt.Println("  deprecated: yes")
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	crates := fs.String("crates", "", "comma-separated list of crate names to search (default: std,core,alloc)")
	topN := fs.Int("top", 20, "maximum number of results to print")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Println("Usage: docnav search <query> [-crates a,b,c] [-top N]")
		os.Exit(1)
	}
	query := fs.Arg(0)

	names := []string{"std", "core", "alloc"}
	if *crates != "" {
		names = strings.Split(*crates, ",")
	}

	nav, cache := newNavigator()
	ctx := context.Background()

	var datas []*crate.Data
	for _, raw := range names {
		name := crate.Canonicalize(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		data, err := nav.LoadCrate(ctx, name, crate.Constraint{})
		if err != nil {
			log.Printf("docnav: skipping %s: %v", name, err)
			continue
		}
		if data == nil {
			log.Printf("docnav: no provider could resolve %s", name)
			continue
		}
		datas = append(datas, data)
	}
	if len(datas) == 0 {
		fmt.Fprintln(os.Stderr, "no crates resolved; nothing to search")
		os.Exit(1)
	}

	opts := search.DefaultMergeOptions()
	opts.TopN = *topN
	results, err := search.SearchMany(ctx, cache, nav, datas, 33, query, opts)
	if err != nil {
		log.Fatalf("docnav: search failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for _, r := range results {
		fmt.Printf("%6.2f  %s::%s\n", r.Score, r.CrateName, r.Path)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	nav, _ := newNavigator()
	ctx := context.Background()

	infos, err := nav.ListAvailableCrates(ctx)
	if err != nil {
		log.Fatalf("docnav: listing crates: %v", err)
	}
	for _, info := range infos {
		fmt.Printf("%s@%s  (%s)\n", info.Name, info.Version, info.Provenance)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
