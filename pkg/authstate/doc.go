// Package authstate keeps a client's view of the storefront session in step
// with the server.
//
// The view is merged from two independent signals: the server's answer to
// GET /api/auth/session, and the script-readable sb-auth-state marker cookie.
// Either one is enough to count as logged in. A Watcher re-runs the check on
// mount, on navigation, when the shared cookie jar changes on disk, on a
// timer while only the marker vouches for the session, and when the server
// pushes an auth event.
package authstate
