package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/protoarbol/catastro/trees"
)

// importFile is the document accepted by import: either a bare list of trees
// or an object with an arboles list, as written by the file store.
type importFile struct {
	Arboles []trees.Tree `json:"arboles" yaml:"arboles"`
}

func readImport(path string) ([]trees.Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if raw[0] == '[' {
			var out []trees.Tree
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			return out, nil
		}
		var doc importFile
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc.Arboles, nil

	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var out []trees.Tree
			if err := node.Decode(&out); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			return out, nil
		}
		var doc importFile
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc.Arboles, nil
	}
	return nil, fmt.Errorf("%s: import reads .json, .yaml or .yml files", path)
}

// importResult counts the outcome of a bulk import.
type importResult struct {
	created atomic.Int64
	failed  atomic.Int64
}

// importTrees submits records through the controller, at most jobs at a time.
// Individual failures are logged and counted; only cancellation stops the run.
func (a *app) importTrees(ctx context.Context, records []trees.Tree, jobs int) (*importResult, error) {
	res := &importResult{}
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, r := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := a.ctrl.Create(ctx, r); err != nil {
				res.failed.Add(1)
				a.logger.Warn("import record", "index", i, "nom_arbol", r.CommonName, "err", err)
				var verr *trees.ValidationError
				if errors.As(err, &verr) {
					fmt.Fprintf(a.out, "registro %d (%s): %s\n", i+1, r.CommonName, verr.Message)
				}
				return nil
			}
			res.created.Add(1)
			return nil
		})
	}
	return res, g.Wait()
}

func newImportCmd(a *app) *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create trees from a JSON or YAML file",
		Long: `Create every tree listed in a JSON or YAML file. Ids in the file are
ignored; the store assigns new ones. Records that fail validation are
reported and skipped.

Examples:
  catastro import levantamiento.yaml
  catastro import --store file -f campo.json export.json --jobs 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readImport(args[0])
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			res, err := a.importTrees(cmd.Context(), records, jobs)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d árboles importados, %d con errores\n", res.created.Load(), res.failed.Load())
			if res.failed.Load() > 0 {
				return fmt.Errorf("%d records were not imported", res.failed.Load())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "concurrent submissions")
	return cmd
}
