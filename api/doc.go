// Package api defines the request and response shapes of the HTTP boundary.
// Handlers translate between these DTOs and the conversation core; the core
// types never leak wire-format concerns.
package api
