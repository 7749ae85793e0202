package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/spf13/cobra"
)

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "Account password (or SHOPCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func (c *credentials) resolvedPassword() (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	if p := os.Getenv("SHOPCTL_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password required: use --password or SHOPCTL_PASSWORD")
}

func loginCmd(opts *options) *cobra.Command {
	var creds credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session in the cookie jar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := creds.resolvedPassword()
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}

			st, err := c.Login(cmd.Context(), creds.email, password)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "%s", describeState(st))
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func registerCmd(opts *options) *cobra.Command {
	var creds credentials

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := creds.resolvedPassword()
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}

			if err := c.Register(cmd.Context(), creds.email, password); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "registered %s", creds.email)
			info(cmd.OutOrStdout(), "check your email for the confirmation code before logging in")
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the cookie jar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			if err := c.Logout(cmd.Context()); err != nil {
				// Local state is already cleared.
				warn(cmd.OutOrStdout(), "server logout failed: %v", err)
			}
			success(cmd.OutOrStdout(), "%s", describeState(c.Watcher.State()))
			return nil
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			st, err := c.Watcher.Check(cmd.Context())
			if err != nil {
				warn(cmd.OutOrStdout(), "server unreachable: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeState(st))
			if st.User != nil {
				info(cmd.OutOrStdout(), "id: %s", st.User.ID)
			}
			return nil
		},
	}
}

// openCmd requests a page the way a browser navigation would and reports
// where the route guard sends it.
func openCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a storefront page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			logger := slogx.FromContext(cmd.Context())
			c.Navigator.OnNavigate = func(path string) { logger.Debug("navigate", "path", path) }

			st, err := c.Navigator.Navigate(cmd.Context(), args[0])
			if err != nil {
				warn(cmd.OutOrStdout(), "server unreachable: %v", err)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, c.BaseURL+args[0], nil)
			if err != nil {
				return err
			}
			pages := &http.Client{
				Jar:     c.Jar,
				Timeout: c.HTTP.Timeout,
				CheckRedirect: func(*http.Request, []*http.Request) error {
					return http.ErrUseLastResponse
				},
			}
			resp, err := pages.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()

			out := cmd.OutOrStdout()
			if loc := resp.Header.Get("Location"); loc != "" {
				fmt.Fprintf(out, "%s -> %s\n", args[0], loc)
			} else {
				fmt.Fprintf(out, "%s %d\n", args[0], resp.StatusCode)
			}
			info(out, "%s", describeState(st))
			return nil
		},
	}
}
