// Package cli provides the interactive gophdrive command-line client.
//
// NewApp wires configuration, the local database, the storage backend and the
// services; App.Run restores a saved login and starts a REPL that browses
// the user's files and the two shared views, manages uploads, downloads,
// sharing and groups. Upload results arrive asynchronously and are printed
// as "[ok]" or "[error]" lines.
//
// User input goes through small seams (printlnFn, getSimpleText,
// getPassword) so commands can be tested without a terminal.
package cli
