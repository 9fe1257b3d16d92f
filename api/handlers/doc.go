// Package handlers implements the HTTP handlers of the colloquy API. Each
// handler owns its dependencies and registers its routes on a mux; the
// presentation boundary never mutates conversation state directly, it only
// issues intents and renders snapshots.
package handlers
