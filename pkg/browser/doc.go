// Package browser is the UI automation surface the renewal engine drives.
//
// The engine never talks to Playwright directly. It works against three small
// interfaces:
//
//  1. Session: the tab set of the single attached browser, with one well-known
//     main tab holding the client roster
//  2. Page: the active tab (lookups, text, navigation, scripts, screenshots,
//     downloads)
//  3. Element: one located control (click, fill, check state, read text)
//
// # Attaching
//
// The operator logs in by hand in a Chrome started with remote debugging
// enabled. Manager.Attach connects to it over CDP and adopts its existing
// context and tabs; no browser is launched and no credentials are handled.
//
// # Errors
//
// Driver errors are mapped onto three sentinels so callers can classify them
// with errors.Is:
//
//   - ErrNotFound: nothing matched before the timeout
//   - ErrStale: the element was detached between discovery and use
//   - ErrSessionLost: the tab or the browser itself is gone
//
// Package browsertest provides a scripted in-memory implementation for tests.
package browser
