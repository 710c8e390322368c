// Package repo holds persistence helpers shared by the domain repositories.
package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Relation manages a two column join table linking an owner row to target
// rows of type T. Table and column names are fixed at construction and never
// come from user input.
type Relation[T any] struct {
	db           *gorm.DB
	table        string
	ownerColumn  string
	targetColumn string
	targetTable  string
}

// RelationSpec names the join table and the table its targets live in.
type RelationSpec struct {
	Table        string
	OwnerColumn  string
	TargetColumn string
	TargetTable  string
}

func NewRelation[T any](db *gorm.DB, spec RelationSpec) *Relation[T] {
	return &Relation[T]{
		db:           db,
		table:        spec.Table,
		ownerColumn:  spec.OwnerColumn,
		targetColumn: spec.TargetColumn,
		targetTable:  spec.TargetTable,
	}
}

// WithTx rebinds the relation to a transaction.
func (r *Relation[T]) WithTx(tx *gorm.DB) *Relation[T] {
	if tx == nil {
		return r
	}
	clone := *r
	clone.db = tx
	return &clone
}

// Get returns the target rows linked to ownerID.
func (r *Relation[T]) Get(ctx context.Context, ownerID uuid.UUID) ([]T, error) {
	var out []T
	err := r.db.WithContext(ctx).
		Table(r.targetTable+" t").
		Select("t.*").
		Joins(fmt.Sprintf("JOIN %s j ON j.%s = t.id", r.table, r.targetColumn)).
		Where(fmt.Sprintf("j.%s = ?", r.ownerColumn), ownerID).
		Find(&out).Error
	return out, err
}

// TargetIDs returns the ids linked to any of ownerIDs.
func (r *Relation[T]) TargetIDs(ctx context.Context, ownerIDs ...uuid.UUID) ([]uuid.UUID, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table(r.table).
		Where(fmt.Sprintf("%s IN ?", r.ownerColumn), ownerIDs).
		Pluck(r.targetColumn, &ids).Error
	return ids, err
}

// Add links ownerID to targetID. Existing links are left untouched.
func (r *Relation[T]) Add(ctx context.Context, ownerID, targetID uuid.UUID) error {
	if ownerID == uuid.Nil || targetID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT (%s, %s) DO NOTHING",
		r.table, r.ownerColumn, r.targetColumn, r.ownerColumn, r.targetColumn,
	)
	return r.db.WithContext(ctx).Exec(stmt, ownerID, targetID).Error
}

// Remove unlinks ownerID from targetID. Removing a missing link is not an error.
func (r *Relation[T]) Remove(ctx context.Context, ownerID, targetID uuid.UUID) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?", r.table, r.ownerColumn, r.targetColumn)
	return r.db.WithContext(ctx).Exec(stmt, ownerID, targetID).Error
}
