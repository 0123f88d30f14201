package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"searchq/internal/api"
	"searchq/internal/queueaccess"
	"searchq/internal/settings"
)

// maxImportBytes bounds `queue import` input.
const maxImportBytes = 16 << 20

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage queued searches",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueEditCommand(ctx))
	queueCmd.AddCommand(newQueueRetagCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueSearchCommand(ctx))
	queueCmd.AddCommand(newQueueExportCommand(ctx))
	queueCmd.AddCommand(newQueueImportCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var ordering string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued searches in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var override settings.Ordering
			if strings.TrimSpace(ordering) != "" {
				parsed, err := settings.ParseOrdering(ordering)
				if err != nil {
					return err
				}
				override = parsed
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				view, err := access.View(cmd.Context(), override)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				if len(view.Rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				writeTable(out,
					[]column{numberCol("#"), wrapCol("Query"), col("Engine"), col("Captured"), col("ID")},
					buildQueueRows(view.Rows),
				)
				fmt.Fprintf(out, "%d queued (%s order)\n", view.Count, view.Ordering)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ordering, "ordering", "", "Override the stored ordering (queue or stack)")
	addJSONFlag(cmd, &asJSON, "the queue")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <index|id>",
		Short: "Show one queued search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				row, err := access.Describe(cmd.Context(), api.ParseRef(args[0]))
				if err != nil {
					return err
				}
				return writeJSON(cmd, row)
			})
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "add <query>",
		Short: "Queue a search by hand",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				tag := strings.TrimSpace(engine)
				if tag == "" {
					names, err := access.Engines(cmd.Context())
					if err != nil {
						return err
					}
					if len(names) > 0 {
						tag = names[0]
					}
				}
				row, err := access.Add(cmd.Context(), api.AddRequest{
					Query:        strings.Join(args, " "),
					SearchEngine: tag,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %q for %s (index %d, id %s)\n", row.Query, row.SearchEngine, row.Index, row.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Engine to tag the query with (default: first configured engine)")
	return cmd
}

func newQueueEditCommand(ctx *commandContext) *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:   "edit <index|id> <query>",
		Short: "Change the text of a queued search",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return ctx.withAccess(func(access queueaccess.Access) error {
				row, err := access.Edit(cmd.Context(), api.EditRequest{
					Ref:     api.ParseRef(args[0]),
					Query:   &query,
					Version: version,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %q (version %d)\n", row.ID, row.Query, row.Version)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&version, "version", 0, "Fail unless the stored version matches")
	return cmd
}

func newQueueRetagCommand(ctx *commandContext) *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:   "retag <index|id> <engine>",
		Short: "Change the engine a queued search replays against",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := args[1]
			return ctx.withAccess(func(access queueaccess.Access) error {
				row, err := access.Edit(cmd.Context(), api.EditRequest{
					Ref:          api.ParseRef(args[0]),
					SearchEngine: &engine,
					Version:      version,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retagged %s to %s\n", row.ID, row.SearchEngine)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&version, "version", 0, "Fail unless the stored version matches")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <index|id>...",
		Aliases: []string{"rm"},
		Short:   "Remove queued searches",
		Long: "Remove queued searches. Ids are stable across removals; indexes shift, " +
			"so several indexes are removed highest first.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := sortRefsForRemoval(args)
			return ctx.withAccess(func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				for _, ref := range refs {
					if err := access.Remove(cmd.Context(), ref); err != nil {
						return fmt.Errorf("remove %s: %w", ref, err)
					}
					fmt.Fprintf(out, "Removed %s\n", ref)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued search",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				result, err := access.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queued searches\n", result.Removed)
				return nil
			})
		},
	}
}

func newQueueSearchCommand(ctx *commandContext) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "search <index|id>",
		Short: "Replay a queued search in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				result, err := access.Search(cmd.Context(), api.SearchRequest{
					Ref:    api.ParseRef(args[0]),
					Engine: engine,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Searched %q on %s\n", result.Row.Query, result.Engine)
				if result.Removed {
					fmt.Fprintln(out, "Removed from queue")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Search with this engine instead of the stored tag")
	return cmd
}

func newQueueExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the queue and settings as a storage dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				dump, err := access.Export(cmd.Context())
				if err != nil {
					return err
				}
				data, err := api.EncodeLegacy(dump, format)
				if err != nil {
					return err
				}
				if strings.TrimSpace(output) == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d queries to %s\n", len(dump.SearchQueries), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json or yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newQueueImportCommand(ctx *commandContext) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Load a storage dump (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImport(cmd, args[0])
			if err != nil {
				return err
			}
			dump, err := api.ParseLegacy(data)
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				result, err := access.Import(cmd.Context(), dump, replace)
				if err != nil {
					return err
				}
				verb := "Appended"
				if result.Replaced {
					verb = "Replaced queue with"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d queries\n", verb, result.Imported)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the queue instead of appending")
	return cmd
}

func readImport(cmd *cobra.Command, path string) ([]byte, error) {
	var reader io.Reader
	if path == "-" {
		reader = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read import: %w", err)
		}
		defer file.Close()
		reader = file
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if len(data) > maxImportBytes {
		return nil, errors.New("import exceeds 16 MiB")
	}
	return data, nil
}

func buildQueueRows(rows []api.QueryRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		captured := ""
		if row.Timestamp > 0 {
			captured = time.UnixMilli(row.Timestamp).Local().Format("2006-01-02 15:04")
		}
		out = append(out, []string{
			strconv.Itoa(row.Index),
			row.Query,
			row.SearchEngine,
			captured,
			row.ID,
		})
	}
	return out
}

// sortRefsForRemoval orders index refs highest first so earlier removals do
// not shift later ones. Id refs keep their position after the indexes.
func sortRefsForRemoval(args []string) []api.Ref {
	var indexes []api.Ref
	var ids []api.Ref
	for _, arg := range args {
		ref := api.ParseRef(arg)
		if ref.Index != nil {
			indexes = append(indexes, ref)
			continue
		}
		ids = append(ids, ref)
	}
	slices.SortStableFunc(indexes, func(a, b api.Ref) int {
		return cmp.Compare(*b.Index, *a.Index)
	})
	return append(indexes, ids...)
}
