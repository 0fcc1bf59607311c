// Package model holds the cached entities shared by the store and the sync
// engines.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key constraints:
//   - Remote ids are decimal strings, never parsed to integers (see ids)
//   - Overlay fields on Status belong to the local user and survive merges
//   - Heterogeneous rows are sealed interfaces; switch over them exhaustively
package model
