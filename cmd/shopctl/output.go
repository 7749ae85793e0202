package main

import (
	"fmt"
	"io"

	"github.com/aussiebroadwan/storefront/pkg/authstate"
)

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// money formats cents as dollars.
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func describeState(s authstate.State) string {
	switch {
	case s.IsLoading:
		return "checking session"
	case s.PartialAuth:
		return "session incomplete, log in again"
	case s.User != nil:
		return "signed in as " + s.User.Email
	case s.IsAuthenticated:
		return "signed in (user not confirmed by the server yet)"
	default:
		return "not signed in"
	}
}
