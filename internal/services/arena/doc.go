// Package arena implements the room and session coordination layer for the
// two-player chess arena.
//
// It keeps WebSocket lifecycle, seat assignment, turn validation, and event
// fan-out isolated from the rules engine and the rating ledger, which are
// consumed through narrow interfaces.
package arena
