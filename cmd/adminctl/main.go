// Command adminctl is the operator CLI for internal/adminapi, grounded
// on presbrey-pkg/base92/cli's root-command-plus-subcommands layout
// (github.com/spf13/cobra), the only multi-command CLI in the retrieval
// pack built by this author.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/presbrey/ircd/internal/adminapi"
)

var (
	addr  string
	token string
)

func main() {
	root := &cobra.Command{
		Use:   "adminctl",
		Short: "Operator CLI for the ircd admin control plane",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:6697", "admin api address")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("IRCD_ADMIN_TOKEN"), "admin api bearer token")

	root.AddCommand(
		statsCmd(),
		channelsCmd(),
		clientsCmd(),
		peersCmd(),
		banCmd(),
		unbanCmd(),
		killCmd(),
		squitCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "adminctl: %v\n", err)
		os.Exit(1)
	}
}

func dial() (*adminapi.Client, context.Context, context.CancelFunc, error) {
	c, err := adminapi.Dial(addr, token)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	return c, ctx, cancel, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server-wide counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
}

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List known channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Channels(ctx)
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
}

func clientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List connected clients, local and remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Clients(ctx)
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
}

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List linked servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Peers(ctx)
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
}

func banCmd() *cobra.Command {
	var kind, reason, setBy string
	var durationSecs int64
	cmd := &cobra.Command{
		Use:   "ban <mask>",
		Short: "Add a ban (kline/gline/dline/xline) and disconnect matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Ban(ctx, &adminapi.BanRequest{
				Kind:         kind,
				Mask:         args[0],
				Reason:       reason,
				SetBy:        setBy,
				DurationSecs: durationSecs,
			})
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "K", "ban kind: G, K, D, or X")
	cmd.Flags().StringVar(&reason, "reason", "", "ban reason")
	cmd.Flags().StringVar(&setBy, "set-by", "adminctl", "operator name recorded with the ban")
	cmd.Flags().Int64Var(&durationSecs, "duration", 0, "ban duration in seconds, 0 for permanent")
	return cmd
}

func unbanCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "unban <mask>",
		Short: "Remove a ban by kind and mask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Unban(ctx, &adminapi.UnbanRequest{Kind: kind, Mask: args[0]})
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "K", "ban kind: G, K, D, or X")
	return cmd
}

func killCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "kill <nick>",
		Short: "Forcibly disconnect a nick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Kill(ctx, &adminapi.KillRequest{Nick: args[0], Reason: reason})
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "Killed by operator", "kill reason")
	return cmd
}

func squitCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "squit <server>",
		Short: "Tear down a peer link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			defer cancel()
			resp, err := c.Squit(ctx, &adminapi.SquitRequest{Server: args[0], Reason: reason})
			if err != nil {
				return err
			}
			printJSON(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "Server split", "squit reason")
	return cmd
}
