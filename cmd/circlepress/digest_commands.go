package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/circlepress"
)

type digestFlags struct {
	from         string
	to           string
	ids          []string
	subject      string
	introduction string
}

func (f *digestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First day of the range (YYYY-MM-DD, site timezone)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day of the range (YYYY-MM-DD, site timezone)")
	cmd.Flags().StringSliceVar(&f.ids, "ids", nil, "Explicit post IDs (overrides --from/--to)")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&f.introduction, "intro", "", "Introduction (Markdown)")
}

func (f *digestFlags) selection(cfg *circlepress.Config) (circlepress.DigestSelection, error) {
	if len(f.ids) > 0 {
		return circlepress.SelectIDs(f.ids...), nil
	}
	start, end, err := circlepress.ParseDateRange(f.from, f.to, cfg.Location())
	if err != nil {
		return circlepress.DigestSelection{}, err
	}
	return circlepress.SelectRange(start, end), nil
}

func newDigestCommand(ctx *commandContext) *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Preview and send email digests",
	}

	var preview digestFlags
	var asHTML bool
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "List the posts a digest would include, or print its HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *circlepress.Config, store *circlepress.Store) error {
				sel, err := preview.selection(cfg)
				if err != nil {
					return err
				}
				composer := circlepress.NewDigestComposer(store, cfg.Site, cfg.Digest)
				posts, err := composer.Resolve(cmd.Context(), sel)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asHTML {
					html, err := composer.Render(cmd.Context(), posts, preview.subject, preview.introduction)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, html)
					return nil
				}
				if len(posts) == 0 {
					fmt.Fprintln(out, "No published posts match")
					return nil
				}
				fmt.Fprintln(out, renderPosts(posts, cfg.Site.Timezone))
				return nil
			})
		},
	}
	preview.register(previewCmd)
	previewCmd.Flags().BoolVar(&asHTML, "html", false, "Print the rendered email HTML")

	var send digestFlags
	var recipient string
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Compose a digest and send it to one recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := circlepress.ValidateEmail(recipient); err != nil {
				return err
			}
			return ctx.withStore(func(cfg *circlepress.Config, store *circlepress.Store) error {
				sel, err := send.selection(cfg)
				if err != nil {
					return err
				}
				logger := ctx.logger()
				sender, err := circlepress.NewMailSender(cfg.Mail, logger)
				if err != nil {
					return err
				}
				composer := circlepress.NewDigestComposer(store, cfg.Site, cfg.Digest)
				email, err := composer.Compose(cmd.Context(), recipient, sel, send.subject, send.introduction)
				if err != nil {
					return err
				}
				if len(email.Posts) == 0 {
					return fmt.Errorf("no published posts match; nothing to send")
				}
				dispatcher := circlepress.NewDispatcher(sender, cfg.Mail, cfg.Site.Name, logger)
				res, err := dispatcher.Send(cmd.Context(), email)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Digest with %d posts sent to %s (id %s)\n", len(email.Posts), email.To, res.ID)
				if res.Confirmation.Attempted && !res.Confirmation.OK() {
					fmt.Fprintf(out, "Confirmation email failed: %v\n", res.Confirmation.Err)
				}
				return nil
			})
		},
	}
	send.register(sendCmd)
	sendCmd.Flags().StringVar(&recipient, "to-email", "", "Recipient address")
	_ = sendCmd.MarkFlagRequired("to-email")

	digestCmd.AddCommand(previewCmd, sendCmd)
	return digestCmd
}
