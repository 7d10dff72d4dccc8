// Package domain contains core concepts of the messaging system.
// No runtime, network, or storage logic should be added here.
package domain

// Identity is a verified user reference produced by successful
// credential validation. It is immutable for the lifetime of a
// connection.
type Identity struct {
	UserID       string
	DisplayLabel string
}
