package jsonapi

import (
	"context"
	"fmt"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/relationship"
)

// dbLoader implements relationship.Loader against a common.Database, using
// the same query-then-Scan pattern as the rest of the package for the
// relationship engine's per-hop loads.
type dbLoader struct {
	db common.Database
}

func newDBLoader(db common.Database) *dbLoader { return &dbLoader{db: db} }

func (l *dbLoader) LoadByForeignKey(ctx context.Context, table, column string, ids []interface{}) ([]relationship.Record, error) {
	var rows []map[string]interface{}
	err := l.db.NewSelect().Table(table).Where(fmt.Sprintf("%s IN (?)", column), ids).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load %s by %s: %w", table, column, err)
	}
	return toRecords(rows), nil
}

func (l *dbLoader) LoadByIDs(ctx context.Context, table, idColumn string, ids []interface{}) ([]relationship.Record, error) {
	var rows []map[string]interface{}
	err := l.db.NewSelect().Table(table).Where(fmt.Sprintf("%s IN (?)", idColumn), ids).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load %s by id: %w", table, err)
	}
	return toRecords(rows), nil
}

func (l *dbLoader) LoadLinkTable(ctx context.Context, tenant, relationshipName, leftResource string, leftIDs []interface{}) ([]relationship.LinkRow, error) {
	var rows []map[string]interface{}
	err := l.db.NewSelect().
		Table(relationship.CanonicalLinkTable).
		Where("tenant = ?", tenant).
		Where("relationship = ?", relationshipName).
		Where("left_resource = ?", leftResource).
		Where("left_id IN (?)", leftIDs).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load link table: %w", err)
	}

	out := make([]relationship.LinkRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, relationship.LinkRow{
			Tenant:              str(r["tenant"]),
			Relationship:        str(r["relationship"]),
			InverseRelationship: str(r["inverse_relationship"]),
			LeftResource:        str(r["left_resource"]),
			LeftID:              r["left_id"],
			RightResource:       str(r["right_resource"]),
			RightID:             r["right_id"],
		})
	}
	return out, nil
}

// dbWriter implements relationship.Writer against a common.Database.
type dbWriter struct {
	db common.Database
}

func newDBWriter(db common.Database) *dbWriter { return &dbWriter{db: db} }

func (w *dbWriter) InsertLink(ctx context.Context, row relationship.LinkRow) error {
	_, err := w.db.NewInsert().
		Table(relationship.CanonicalLinkTable).
		Value("tenant", row.Tenant).
		Value("relationship", row.Relationship).
		Value("inverse_relationship", row.InverseRelationship).
		Value("left_resource", row.LeftResource).
		Value("left_id", row.LeftID).
		Value("right_resource", row.RightResource).
		Value("right_id", row.RightID).
		OnConflict("DO NOTHING").
		Exec(ctx)
	return err
}

func (w *dbWriter) DeleteLinks(ctx context.Context, tenant, relationshipName, leftResource string, leftID interface{}) error {
	_, err := w.db.NewDelete().
		Table(relationship.CanonicalLinkTable).
		Where("tenant = ?", tenant).
		Where("relationship = ?", relationshipName).
		Where("left_resource = ?", leftResource).
		Where("left_id = ?", leftID).
		Exec(ctx)
	return err
}

func (w *dbWriter) DeleteLink(ctx context.Context, row relationship.LinkRow) error {
	_, err := w.db.NewDelete().
		Table(relationship.CanonicalLinkTable).
		Where("tenant = ?", row.Tenant).
		Where("relationship = ?", row.Relationship).
		Where("left_resource = ?", row.LeftResource).
		Where("left_id = ?", row.LeftID).
		Where("right_resource = ?", row.RightResource).
		Where("right_id = ?", row.RightID).
		Exec(ctx)
	return err
}

func (w *dbWriter) SetForeignKey(ctx context.Context, table, idColumn string, id interface{}, fkColumn string, fkValue interface{}) error {
	_, err := w.db.NewUpdate().
		Table(table).
		Set(fkColumn, fkValue).
		Where(fmt.Sprintf("%s = ?", idColumn), id).
		Exec(ctx)
	return err
}

func toRecords(rows []map[string]interface{}) []relationship.Record {
	out := make([]relationship.Record, len(rows))
	for i, r := range rows {
		out[i] = relationship.Record(r)
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
