package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/circlepress"
)

func newPostsCommand(ctx *commandContext) *cobra.Command {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Inspect posts in the database",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *circlepress.Config, store *circlepress.Store) error {
				list := store.ListActive
				if all {
					list = store.ListAll
				}
				posts, err := list(cmd.Context())
				if err != nil {
					return err
				}
				if len(posts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No posts")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPosts(posts, cfg.Site.Timezone))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include soft-deleted posts")

	historyCmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the field-level change history of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *circlepress.Config, store *circlepress.Store) error {
				entries, err := store.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						circlepress.InZone(e.ChangedAt, cfg.Site.Timezone).Format("2006-01-02 15:04"),
						e.Field,
						clip(deref(e.OldValue), 40),
						clip(deref(e.NewValue), 40),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Changed", "Field", "Old", "New"}, rows, nil))
				return nil
			})
		},
	}

	postsCmd.AddCommand(listCmd, historyCmd)
	return postsCmd
}

func renderPosts(posts []circlepress.Post, zone string) string {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		status := string(p.Status)
		if p.Deleted() {
			status += " (deleted)"
		}
		rows = append(rows, []string{
			p.ID,
			clip(p.Title, 40),
			status,
			circlepress.InZone(p.PublishedAt, zone).Format(circlepress.DateLayout),
			strings.Join(p.Tags, ", "),
			strconv.Itoa(p.Version),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Status", "Published", "Tags", "Version"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func clip(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
