// Package auth provides authentication for the hosting API.
//
// Human users register with a username and password; passwords are
// stored as bcrypt hashes. Login issues an HS256 JWT whose "sub" claim
// carries the user ID, signed with the configured jwt_secret. The HTTP
// middleware verifies the bearer token on every API request and makes
// the user ID available to handlers through the request context.
package auth
