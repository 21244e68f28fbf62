// Package server is the websocket transport around the session engine.
//
// The Hub owns every live connection and runs the only loop that feeds the
// engine, so events reach each client in the order the engine produced them.
// Clients decode frames, apply rate limits and pump bytes; HTTP handlers and
// routes expose the websocket endpoint plus a few read-only views.
package server
