// Package worker is the MindMatters background worker.
//
// A Worker fronts the app origin on a loopback address. Every app request
// goes through the interceptor, which answers from the current cache
// generation or the network and never fails. Alongside that it drains the
// sync queue, fires reminder notifications, and delivers commands to open
// app windows over Server-Sent Events.
//
// All work arrives as events (install, activate, fetch, sync, periodic-sync,
// message, notification-click) routed by a Dispatcher. A failing handler is
// logged and never stops the worker.
//
// Control endpoints live under /_worker:
//
//	POST /_worker/message                        app-to-worker messages
//	GET  /_worker/notifications                  displayed notifications
//	POST /_worker/notifications/{tag}/click      notification click or action
//	GET  /_worker/clients/stream                 window registration (SSE)
//	GET  /_worker/health, /_worker/status        liveness and diagnostics
package worker
