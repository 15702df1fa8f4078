// Package api exposes the hosting service over HTTP: account signup and
// login, the node list, and authenticated bot lifecycle and command flag
// routes. Bot tokens arrive in request bodies and are never echoed back
// in responses, logs, or error messages.
package api
