// ABOUTME: Package documentation for the gateway orchestrator
// ABOUTME: Describes component wiring, the HTTP surface, and lifecycle management

/*
Package gateway wires the pileup-gateway components together and serves the
HTTP API.

A Gateway owns the SQLite store, the event bus, the coordinator, the SSE
streamer, and the optional admin authenticator. New builds the whole object
graph from a config.Config; Run starts the HTTP server plus the background
keepalive and history-sweeper loops and blocks until the context is canceled,
then performs a graceful shutdown.

The HTTP surface splits into three tiers:

  - Health: GET /health and GET /health/ready, always open.
  - Public: queue registration and withdrawal, read-only views of the queue,
    current contact, worked history and full status, and the SSE event stream
    at GET /api/stream.
  - Admin: contact lifecycle and settings mutations under /api/admin/,
    protected by bearer tokens issued by POST /api/admin/login. When no admin
    credentials are configured these routes are not registered at all.

Listeners come from plain TCP or, when tailscale.enabled is set, from an
embedded tsnet node, optionally with Tailscale-provisioned TLS certs or a
public Funnel.
*/
package gateway
