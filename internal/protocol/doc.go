// Package protocol defines the JSON envelope exchanged between relay
// clients and the server, and the close codes used during admission.
package protocol
