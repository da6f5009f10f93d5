// Package clients tracks the app windows connected to the worker.
//
// A window registers by opening GET /_worker/clients/stream and keeping the
// SSE stream open. Notification clicks call Registry.FocusOrOpen, which sends
// a focus command to the most recently focused window or, when none is
// connected, opens a new one through an Opener.
package clients
