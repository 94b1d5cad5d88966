package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) threadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect and administer forum threads",
	}
	cmd.AddCommand(a.threadsListCmd(), a.threadsDeleteCmd(), a.threadsWipeCmd())
	return cmd
}

// withStore loads the config and runs fn against the API with a bounded
// context
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context, store client.ThreadStore) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx, a.newStore(cfg))
}

func (a *app) threadsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store client.ThreadStore) error {
				threads, err := store.ListThreads(ctx)
				if err != nil {
					return errors.Wrap(err, "list threads")
				}
				if len(threads) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No threads yet.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderThreadTable(threads))
				return nil
			})
		},
	}
}

func renderThreadTable(threads []forum.Thread) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "CREATED")
	for _, th := range threads {
		created := "unknown"
		if !th.CreatedAt.IsZero() {
			created = th.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		t.Row(strconv.FormatInt(th.ID, 10), th.Title, created)
	}
	return t.Render()
}

func (a *app) threadsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one thread and its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return errors.Errorf("invalid thread id %q", args[0])
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, store client.ThreadStore) error {
				if err := store.DeleteThread(ctx, id); err != nil {
					return errors.Wrapf(err, "delete thread %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %d\n", id)
				return nil
			})
		},
	}
}

func (a *app) threadsWipeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every thread and post on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to wipe all threads without --yes")
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, store client.ThreadStore) error {
				if err := store.WipeThreads(ctx); err != nil {
					return errors.Wrap(err, "wipe threads")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All threads deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")
	return cmd
}
