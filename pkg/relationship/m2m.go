package relationship

import (
	"strings"

	"github.com/go-jsonapi/server/pkg/schema"
)

// LinkRow is one row of the canonical many-to-many link table (§6):
//
//	{tenant, relationship, inverse_relationship,
//	 left_resource, left_id, right_resource, right_id, payload, created_at, updated_at}
//
// uniqueness on (tenant, relationship, left_resource, left_id, right_resource, right_id).
type LinkRow struct {
	Tenant               string
	Relationship         string
	InverseRelationship  string
	LeftResource         string
	LeftID               interface{}
	RightResource        string
	RightID              interface{}
	Payload              map[string]interface{}
}

// CanonicalLinkTable is the fixed physical table name every manyToMany
// relationship shares, per §6 "one canonical table, not one per pair".
const CanonicalLinkTable = "resource_relationship_links"

// Canonicalize orders a manyToMany pair's (resource, relationship) sides so
// the inverse pair always produces the identical LinkRow, regardless of
// which side issued the write (§3 "shares a canonical ordering").
func Canonicalize(tenant, leftResource, relName string, leftID interface{}, rightResource, inverseRel string, rightID interface{}) LinkRow {
	row := LinkRow{
		Tenant: tenant, Relationship: relName, InverseRelationship: inverseRel,
		LeftResource: leftResource, LeftID: leftID,
		RightResource: rightResource, RightID: rightID,
	}
	if !row.canonicalOrderOK() {
		row = row.flip()
	}
	return row
}

// canonicalOrderOK reports whether this row is already in canonical
// (left < right) order, breaking ties on resource name then relationship
// name so a pair always normalizes to one physical row.
func (r LinkRow) canonicalOrderOK() bool {
	if r.LeftResource != r.RightResource {
		return r.LeftResource < r.RightResource
	}
	return r.Relationship <= r.InverseRelationship
}

func (r LinkRow) flip() LinkRow {
	return LinkRow{
		Tenant:              r.Tenant,
		Relationship:        r.InverseRelationship,
		InverseRelationship: r.Relationship,
		LeftResource:        r.RightResource,
		LeftID:              r.RightID,
		RightResource:       r.LeftResource,
		RightID:             r.LeftID,
		Payload:             r.Payload,
	}
}

// linkTableName returns either the canonical table or a relationship-
// specific Through table, honoring RelationshipDescriptor.Canonical (§9
// "canonical-vs-per-resource tables").
func linkTableName(rel *schema.RelationshipDescriptor) string {
	if rel.Canonical || rel.Through == "" {
		return CanonicalLinkTable
	}
	return rel.Through
}

// relevantSide returns which physical column (left_resource/right_resource)
// a query against relName from the perspective of resourceType should
// filter on, after canonicalization may have flipped the row.
func relevantSide(resourceType, relName string, canonicalLeft string) string {
	if strings.EqualFold(resourceType, canonicalLeft) {
		return "left"
	}
	_ = relName
	return "right"
}
