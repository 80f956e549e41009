// Package storage provides interfaces and implementations for the short link
// and gateway configuration stores.
//
// The package supports multiple types of storage:
// 1. StorageDB - PostgreSQL through database/sql and pgx, schema managed by goose.
// 2. StorageFile - in-memory state replayed from and journaled to a file on disk.
// 3. StorageMemory - in-memory state only.
//
// All of them treat a duplicate code as "not inserted" so the allocator can
// pick another one.
package storage
