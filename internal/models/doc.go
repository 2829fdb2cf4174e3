// Package models defines domain entities and persistence interfaces for tdx.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): plain structs exchanged with music services and CSV files
//   - [Track] : song metadata, optionally tagged with the playlist it came from
//   - [Album], [Artist] : saved albums and followed artists
//   - [Playlist] : playlist metadata
//   - [Failure] : a row of the failed-tracks report
//
// 2. Persistent Entities: database-backed records implementing [Model]
//   - [Match] : an accepted cross-catalog match, reused by later imports
//   - [ImportRun] : one import invocation with its totals and status
//
// The Repository[T] interface defines the CRUD operations shared by the SQLite repositories.
package models
