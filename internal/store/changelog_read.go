package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/changelog/internal/models"
)

// changeColumns lists the columns selected when loading change graphs.
const changeColumns = `cs.id, cs.seq, cs.created_at, cs.author,
	oc.id, oc.type_name, oc.object_reference,
	pc.id, pc.property_name, pc.value, pc.value_as_int`

// changeRow is one joined row of change_sets, object_changes and
// property_changes. The property columns are null for object changes
// without properties.
type changeRow struct {
	cs models.ChangeSet
	oc models.ObjectChange

	pcID       *int64
	pcName     *string
	pcValue    *string
	pcValueInt *int64
}

func scanChangeRow(scan func(dest ...any) error) (*changeRow, error) {
	var r changeRow

	err := scan(
		&r.cs.ID, &r.cs.Sequence, &r.cs.Timestamp, &r.cs.Author,
		&r.oc.ID, &r.oc.TypeName, &r.oc.ObjectReference,
		&r.pcID, &r.pcName, &r.pcValue, &r.pcValueInt,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *changeRow) propertyChange() *models.PropertyChange {
	if r.pcID == nil {
		return nil
	}

	return &models.PropertyChange{
		ID:           *r.pcID,
		PropertyName: *r.pcName,
		Value:        r.pcValue,
		ValueAsInt:   r.pcValueInt,
	}
}

// assemble folds joined rows into linked change sets, preserving row order.
func assemble(rows []*changeRow) []*models.ChangeSet {
	var out []*models.ChangeSet
	sets := make(map[uuid.UUID]*models.ChangeSet)
	objects := make(map[int64]*models.ObjectChange)

	for _, r := range rows {
		cs, ok := sets[r.cs.ID]
		if !ok {
			cs = &models.ChangeSet{ID: r.cs.ID, Sequence: r.cs.Sequence, Timestamp: r.cs.Timestamp, Author: r.cs.Author}
			sets[cs.ID] = cs
			out = append(out, cs)
		}

		oc, ok := objects[r.oc.ID]
		if !ok {
			oc = &models.ObjectChange{
				ID:              r.oc.ID,
				ChangeSet:       cs,
				TypeName:        r.oc.TypeName,
				ObjectReference: r.oc.ObjectReference,
			}
			objects[oc.ID] = oc
			cs.ObjectChanges = append(cs.ObjectChanges, oc)
		}

		if pc := r.propertyChange(); pc != nil {
			pc.ObjectChange = oc
			oc.PropertyChanges = append(oc.PropertyChanges, pc)
		}
	}

	return out
}

func (s *ChangeLogStore) queryChanges(ctx context.Context, query string, args ...any) ([]*models.ChangeSet, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var scanned []*changeRow
	for rows.Next() {
		r, err := scanChangeRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning change row: %w", err)
		}
		scanned = append(scanned, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change rows: %w", err)
	}

	return assemble(scanned), nil
}

// ObjectChanges returns the changes to one object, oldest first. Ties on
// timestamp are broken by insertion sequence.
func (s *ChangeLogStore) ObjectChanges(ctx context.Context, typeName, ref string) ([]*models.ObjectChange, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sets, err := s.queryChanges(ctx,
		`SELECT `+changeColumns+`
		 FROM object_changes oc
		 JOIN change_sets cs ON cs.id = oc.change_set_id
		 LEFT JOIN property_changes pc ON pc.object_change_id = oc.id
		 WHERE oc.type_name = $1 AND oc.object_reference = $2
		 ORDER BY cs.created_at, cs.seq, pc.id`,
		typeName, ref,
	)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ObjectChange, 0, len(sets))
	for _, cs := range sets {
		out = append(out, cs.ObjectChanges...)
	}

	return out, nil
}

// PropertyChanges returns the changes to one property, most recent first.
func (s *ChangeLogStore) PropertyChanges(ctx context.Context, typeName, ref, property string) ([]*models.PropertyChange, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sets, err := s.queryChanges(ctx,
		`SELECT `+changeColumns+`
		 FROM property_changes pc
		 JOIN object_changes oc ON oc.id = pc.object_change_id
		 JOIN change_sets cs ON cs.id = oc.change_set_id
		 WHERE oc.type_name = $1 AND oc.object_reference = $2 AND pc.property_name = $3
		 ORDER BY cs.created_at DESC, cs.seq DESC`,
		typeName, ref, property,
	)
	if err != nil {
		return nil, err
	}

	out := make([]*models.PropertyChange, 0, len(sets))
	for _, cs := range sets {
		for _, oc := range cs.ObjectChanges {
			out = append(out, oc.PropertyChanges...)
		}
	}

	return out, nil
}

// buildChangeSetFilter constructs the WHERE clause for change set listing.
func buildChangeSetFilter(opts models.ChangeSetQueryOpts) (string, []any, int) {
	var conditions []string
	var args []any
	argIdx := 1

	if opts.Author != "" {
		conditions = append(conditions, fmt.Sprintf("author = $%d", argIdx))
		args = append(args, opts.Author)
		argIdx++
	}

	if opts.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// ListChangeSets returns change sets matching the given filters, most
// recent first, with their object and property changes.
// Returns change sets, hasMore flag, and any error.
func (s *ChangeLogStore) ListChangeSets(ctx context.Context, opts models.ChangeSetQueryOpts) ([]*models.ChangeSet, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args, argIdx := buildChangeSetFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		"SELECT id FROM change_sets %s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d",
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, max(opts.Offset, 0))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing change sets: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, false, fmt.Errorf("scanning change set ids: %w", err)
	}

	hasMore := len(ids) > limit
	if hasMore {
		ids = ids[:limit]
	}

	if len(ids) == 0 {
		return []*models.ChangeSet{}, false, nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	sets, err := s.queryChanges(ctx,
		`SELECT `+changeColumns+`
		 FROM change_sets cs
		 JOIN object_changes oc ON oc.change_set_id = cs.id
		 LEFT JOIN property_changes pc ON pc.object_change_id = oc.id
		 WHERE cs.id = ANY($1::uuid[])
		 ORDER BY cs.created_at DESC, cs.seq DESC, oc.id, pc.id`,
		idStrings,
	)
	if err != nil {
		return nil, false, err
	}

	return sets, hasMore, nil
}

// GetChangeSet returns one change set with its object and property changes.
func (s *ChangeLogStore) GetChangeSet(ctx context.Context, id uuid.UUID) (*models.ChangeSet, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sets, err := s.queryChanges(ctx,
		`SELECT `+changeColumns+`
		 FROM change_sets cs
		 JOIN object_changes oc ON oc.change_set_id = cs.id
		 LEFT JOIN property_changes pc ON pc.object_change_id = oc.id
		 WHERE cs.id = $1
		 ORDER BY oc.id, pc.id`,
		id,
	)
	if err != nil {
		return nil, err
	}

	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrChangeSetNotFound, id)
	}

	return sets[0], nil
}
