// Command gik is a minimal entry point for exercising the library end to
// end. It is not the project's CLI surface (flags, rendering, TUI
// ergonomics are out of scope); it exists for local smoke-testing of the
// init/stage/commit/reindex/ask pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/guided-indexing/gik/internal/ask"
	"github.com/guided-indexing/gik/internal/commit"
	"github.com/guided-indexing/gik/internal/config"
	"github.com/guided-indexing/gik/internal/embedding"
	"github.com/guided-indexing/gik/internal/reindex"
	"github.com/guided-indexing/gik/internal/staging"
	"github.com/guided-indexing/gik/internal/workspace"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gik:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: gik <init|stage|commit|reindex|ask> ...")
	}

	ctx := context.Background()
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	switch args[0] {
	case "init":
		ws, err := workspace.Init(cwd)
		if err != nil {
			return err
		}
		fmt.Println("initialized workspace at", ws.Root())
		return nil

	case "stage":
		if len(args) < 3 {
			return fmt.Errorf("usage: gik stage <branch> <file|url> [kind]")
		}
		kind := staging.KindFile
		if len(args) > 3 {
			kind = staging.Kind(args[3])
		}
		return runStage(args[1], args[2], kind)

	case "commit":
		if len(args) < 2 {
			return fmt.Errorf("usage: gik commit <branch> [message]")
		}
		msg := "commit"
		if len(args) > 2 {
			msg = args[2]
		}
		return runCommit(ctx, args[1], msg)

	case "reindex":
		if len(args) < 2 {
			return fmt.Errorf("usage: gik reindex <branch>")
		}
		return runReindex(ctx, args[1])

	case "ask":
		if len(args) < 3 {
			return fmt.Errorf("usage: gik ask <branch> <question>")
		}
		return runAsk(ctx, args[1], args[2])

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func openWorkspace(cwd string) (*workspace.Workspace, *config.Config, error) {
	ws, err := workspace.Resolve(cwd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(ws.Root(), nil)
	if err != nil {
		return nil, nil, err
	}
	return ws, cfg, nil
}

func runStage(branch, uri string, kind staging.Kind) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	ws, _, err := openWorkspace(cwd)
	if err != nil {
		return err
	}
	branchRoot, err := ws.BranchRoot(branch)
	if err != nil {
		return err
	}
	st := staging.New(branchRoot + "/staging")
	result, err := st.Add([]staging.AddRequest{{Kind: kind, URI: uri}}, ws.Root(), nil)
	if err != nil {
		return err
	}
	fmt.Printf("staged %d source(s), skipped %d\n", len(result.Added), len(result.Skipped))
	return nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	return embedding.NewEmbedder(ctx, embedding.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model)
}

func runCommit(ctx context.Context, branch, message string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	ws, cfg, err := openWorkspace(cwd)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	pipeline := commit.New(ws, cfg, embedder, nil, slog.Default())
	result, err := pipeline.Commit(ctx, branch, commit.Options{Message: message})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runReindex(ctx context.Context, branch string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	ws, cfg, err := openWorkspace(cwd)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	pipeline := reindex.New(ws, cfg, embedder, slog.Default())
	result, err := pipeline.Reindex(ctx, branch, reindex.Options{})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runAsk(ctx context.Context, branch, question string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	ws, cfg, err := openWorkspace(cwd)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	pipeline := ask.New(ws, cfg, embedder, nil, slog.Default())
	bundle, err := pipeline.Ask(ctx, branch, question, ask.Options{})
	if err != nil {
		return err
	}
	return printJSON(bundle)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
