// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns. Each model has ToDomain and a FromDomain constructor; repositories
// in the parent package only ever hand domain values to their callers.
//
// Structure:
// - template.go: administrative template definitions
// - artifact.go: artifact metadata with soft-delete tombstones
// - quota.go: quota records and reservation tokens
package models
