// Package gateway abstracts the chat gateway as an opaque connect
// capability: Connect(credential) yields a Handle or fails with
// ErrInvalidCredential; a Handle delivers inbound Events and is torn
// down with Disconnect. The production Connector speaks Discord through
// discordgo; MockConnector backs the tests.
package gateway
