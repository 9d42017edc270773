package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	sourcewatch "github.com/webeye/sourcewatch"
)

func newReviewsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Write reviews",
	}
	var rating int
	var text string
	post := &cobra.Command{
		Use:   "post SOURCE_UUID",
		Short: "Rate a source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if rating < 1 || rating > 5 {
				return errors.New("--rating must be between 1 and 5")
			}
			err = e.service.PostReview(context.Background(), sourcewatch.ReviewCreate{ResourceUUID: id, Rating: rating, Text: text})
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, "review posted")
			return nil
		}),
	}
	post.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	post.Flags().StringVar(&text, "text", "", "review text")
	cmd.AddCommand(post)
	return cmd
}

func parseStatus(s string) (sourcewatch.SourceStatus, error) {
	st := sourcewatch.SourceStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case sourcewatch.SourceUp, sourcewatch.SourceDown, sourcewatch.SourcePartial, sourcewatch.SourceUnknown:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func newReportsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "File and moderate outage reports",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every report (admin)",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			reports, err := e.service.Reports(context.Background())
			if err != nil {
				return err
			}
			return e.printJSON(reports)
		}),
	}

	var postStatus, postText string
	post := &cobra.Command{
		Use:   "post SOURCE_UUID",
		Short: "Report the state you observe for a source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			st, err := parseStatus(postStatus)
			if err != nil {
				return err
			}
			if err := e.service.PostReport(context.Background(), sourcewatch.ReportCreate{ResourceUUID: id, Status: st, Text: postText}); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "report posted")
			return nil
		}),
	}
	post.Flags().StringVar(&postStatus, "status", string(sourcewatch.SourceDown), "observed status")
	post.Flags().StringVar(&postText, "text", "", "details")

	var modStatus, modText string
	var moderated bool
	moderate := &cobra.Command{
		Use:   "moderate REPORT_UUID",
		Short: "Edit or approve a report (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			var patch sourcewatch.ReportPatch
			if modStatus != "" {
				st, err := parseStatus(modStatus)
				if err != nil {
					return err
				}
				patch.Status = &st
			}
			if modText != "" {
				patch.Text = &modText
			}
			patch.IsModerated = &moderated
			if err := e.service.PatchReport(context.Background(), id, patch); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "report updated")
			return nil
		}),
	}
	moderate.Flags().StringVar(&modStatus, "status", "", "new status")
	moderate.Flags().StringVar(&modText, "text", "", "new text")
	moderate.Flags().BoolVar(&moderated, "moderated", true, "mark as moderated")

	del := &cobra.Command{
		Use:   "delete REPORT_UUID",
		Short: "Delete a report (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if err := e.service.DeleteReport(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "report deleted")
			return nil
		}),
	}

	cmd.AddCommand(list, post, moderate, del)
	return cmd
}

func newSubscriptionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage status notifications",
	}

	var source string
	list := &cobra.Command{
		Use:   "list",
		Short: "List your subscriptions",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			id := uuid.Nil
			if source != "" {
				var err error
				if id, err = parseUUID(source); err != nil {
					return err
				}
			}
			subs, err := e.service.Subscriptions(context.Background(), id)
			if err != nil {
				return err
			}
			return e.printJSON(subs)
		}),
	}
	list.Flags().StringVar(&source, "source", "", "only subscriptions to this source")

	add := &cobra.Command{
		Use:   "add SOURCE_UUID",
		Short: "Subscribe to a source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			sub, err := e.service.Subscribe(context.Background(), sourcewatch.SubscriptionCreate{ResourceUUID: id, Active: true})
			if err != nil {
				return err
			}
			return e.printJSON(sub)
		}),
	}

	var active bool
	set := &cobra.Command{
		Use:   "set SUBSCRIPTION_UUID",
		Short: "Pause or resume a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if err := e.service.SetSubscriptionActive(context.Background(), id, active); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "subscription %s active=%t\n", id, active)
			return nil
		}),
	}
	set.Flags().BoolVar(&active, "active", true, "whether notifications are sent")

	cmd.AddCommand(list, add, set)
	return cmd
}

func newAdminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the monitored sources (admin)",
	}

	var res sourcewatch.ResourceCreate
	addSource := &cobra.Command{
		Use:   "add-source",
		Short: "Start monitoring a source",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(e *env, args []string) error {
			if strings.TrimSpace(res.Name) == "" {
				return errors.New("--name is required")
			}
			src, err := e.service.AddSource(context.Background(), res)
			if err != nil {
				return err
			}
			return e.printJSON(src)
		}),
	}
	addSource.Flags().StringVar(&res.Name, "name", "", "source name")
	addSource.Flags().StringVar(&res.Description, "description", "", "source description")

	deleteSource := &cobra.Command{
		Use:   "delete-source UUID",
		Short: "Stop monitoring a source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if err := e.service.DeleteSource(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "source deleted")
			return nil
		}),
	}

	var nodeURL string
	addNode := &cobra.Command{
		Use:   "add-node SOURCE_UUID",
		Short: "Add a URL the checkers probe for a source",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(e *env, args []string) error {
			id, err := parseUUID(args[0])
			if err != nil {
				return err
			}
			if nodeURL == "" {
				return errors.New("--url is required")
			}
			if err := e.service.AddNode(context.Background(), sourcewatch.ResourceNode{ResourceUUID: id, URL: nodeURL}); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "node added")
			return nil
		}),
	}
	addNode.Flags().StringVar(&nodeURL, "url", "", "URL to probe")

	cmd.AddCommand(addSource, deleteSource, addNode)
	return cmd
}
