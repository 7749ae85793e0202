package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/authstate"
	"github.com/spf13/cobra"
)

func watchCmd(opts *options) *cobra.Command {
	var (
		poll   time.Duration
		noPush bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session state until interrupted",
		Long: `Print the session state whenever it changes. The state is re-checked
when another shopctl process rewrites the cookie jar, when the server pushes
an auth event, and on a timer while only the auth-state cookie vouches for
the session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			unsubscribe := c.Watcher.Subscribe(func(s authstate.State) {
				fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), describeState(s))
			})
			defer unsubscribe()

			triggers := []authstate.Trigger{
				authstate.StorageTrigger{Jar: c.Jar},
				authstate.PollTrigger{Interval: poll},
			}
			if !noPush {
				triggers = append(triggers, authstate.PushTrigger{URL: c.EventsURL(), Jar: c.Jar})
			}
			return c.Watcher.Run(ctx, triggers...)
		},
	}

	cmd.Flags().DurationVar(&poll, "poll", authstate.DefaultPollInterval, "Re-check interval while the user is unconfirmed")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Do not subscribe to server auth events")
	return cmd
}
