// Package jsonapi implements the JSON:API v1.1 transport: request parsing,
// the resolved-resource pipeline, document/error serialization, and the §6
// endpoint table, wired on top of pkg/planner, pkg/pagination and
// pkg/relationship.
package jsonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-jsonapi/server/pkg/cache"
	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/errortracking"
	"github.com/go-jsonapi/server/pkg/logger"
	"github.com/go-jsonapi/server/pkg/pagination"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/relationship"
	"github.com/go-jsonapi/server/pkg/schema"
)

const mediaType = "application/vnd.api+json"

// TenantResolver extracts the tenant identifier a request operates under
// (§1 "multi-tenant... tenant resolution is an external concern").
type TenantResolver func(r common.Request) string

// Handler is the JSON:API transport's entry point: one instance serves every
// resource type installed in the registry.
type Handler struct {
	db       common.Database
	registry *schema.Registry
	cfg      planner.Config

	loader relationship.Loader
	writer relationship.Writer

	checker  PermissionChecker
	tracker  errortracking.Provider
	signer   *pagination.Signer
	resolveTenant TenantResolver

	totalCache    *cache.Cache
	totalCacheTTL time.Duration

	readPipeline *Pipeline
}

// NewHandler builds a Handler against a database connection and an installed
// schema registry. The handler starts with no permission checker (every
// operation is allowed), a no-op error tracker and unsigned cursors; the
// With* methods install a checker, a tracker and a cursor-signing key.
func NewHandler(db common.Database, registry *schema.Registry, cfg planner.Config) *Handler {
	h := &Handler{
		db:       db,
		registry: registry,
		cfg:      cfg,
		loader:   newDBLoader(db),
		writer:   newDBWriter(db),
		tracker:  errortracking.NewNoOpProvider(),
		resolveTenant: func(common.Request) string { return "" },
	}
	pipeline, err := h.buildReadPipeline()
	if err != nil {
		panic(fmt.Sprintf("jsonapi: default pipeline failed to compile: %v", err))
	}
	h.readPipeline = pipeline
	return h
}

// WithPermissionChecker installs a PermissionChecker and returns h for
// chaining at construction time.
func (h *Handler) WithPermissionChecker(c PermissionChecker) *Handler {
	h.checker = c
	return h
}

// WithErrorTracking installs the error tracking provider internal-kind
// errors are reported to (§7).
func (h *Handler) WithErrorTracking(t errortracking.Provider) *Handler {
	if t != nil {
		h.tracker = t
	}
	return h
}

// WithCursorSigning enables HMAC-signed pagination cursors (§9 supplemented
// feature: tamper-evident opaque cursors).
func (h *Handler) WithCursorSigning(key []byte) *Handler {
	h.signer = pagination.NewSigner(key)
	return h
}

// WithTotalCountCache installs a cache for offset-pagination total counts,
// keyed on resource type plus the resolved filter/join plan. A `COUNT(*)`
// query runs once per distinct filter combination per ttl, instead of once
// per request.
func (h *Handler) WithTotalCountCache(c *cache.Cache, ttl time.Duration) *Handler {
	h.totalCache = c
	h.totalCacheTTL = ttl
	return h
}

// WithTenantResolver installs the function used to resolve a request's
// tenant identifier.
func (h *Handler) WithTenantResolver(fn TenantResolver) *Handler {
	if fn != nil {
		h.resolveTenant = fn
	}
	return h
}

// GetDatabase implements common.SpecHandler.
func (h *Handler) GetDatabase() common.Database { return h.db }

func (h *Handler) lookup(resourceType string) (*schema.ResourceDescriptor, bool) {
	return h.registry.Get(resourceType)
}

func (h *Handler) handlePanic(w common.ResponseWriter, ctx context.Context, method string) {
	if err := recover(); err != nil {
		stack := debug.Stack()
		logger.Error("panic in %s: %v\n%s", method, err, string(stack))
		h.tracker.CaptureError(ctx, fmt.Errorf("panic in %s: %v", method, err), errortracking.SeverityError, nil)
		h.writeError(w, ctx, fmt.Errorf("internal error"))
	}
}

// Handle dispatches one JSON:API request. params carries the path-extracted
// resourceType/id/relationship segments (§6): the transport adapters
// (transport_mux.go, transport_bunrouter.go) are responsible for populating
// them from the router's own path-parameter mechanism.
func (h *Handler) Handle(w common.ResponseWriter, r common.Request, params map[string]string) {
	ctx := r.UnderlyingRequest().Context()
	defer h.handlePanic(w, ctx, "Handle")

	resourceType := params["type"]
	res, ok := h.registry.Get(resourceType)
	if !ok {
		h.writeError(w, ctx, NewError(KindNotFound, "Resource type not found", resourceType))
		return
	}

	id := params["id"]
	relName := params["relationship"]
	related := params["related"]

	switch {
	case relName != "":
		h.handleRelationship(ctx, w, r, res, id, relName)
	case related != "":
		h.handleRelated(ctx, w, r, res, id, related)
	case id != "":
		h.handleSingle(ctx, w, r, res, id)
	default:
		h.handleCollection(ctx, w, r, res)
	}
}

func (h *Handler) handleCollection(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor) {
	switch r.Method() {
	case http.MethodGet:
		h.list(ctx, w, r, res)
	case http.MethodPost:
		h.create(ctx, w, r, res)
	default:
		h.writeError(w, ctx, NewError(KindValidation, "Method not allowed", r.Method()))
	}
}

func (h *Handler) handleSingle(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string) {
	switch r.Method() {
	case http.MethodGet:
		h.get(ctx, w, r, res, id)
	case http.MethodPatch:
		h.update(ctx, w, r, res, id)
	case http.MethodPut:
		h.upsert(ctx, w, r, res, id)
	case http.MethodDelete:
		h.delete(ctx, w, r, res, id)
	default:
		h.writeError(w, ctx, NewError(KindValidation, "Method not allowed", r.Method()))
	}
}

func (h *Handler) list(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor) {
	rawQuery := h.parseQuery(r)
	rc := &RequestContext{
		Ctx: ctx, Resource: res, Tenant: h.resolveTenant(r), BasePath: h.basePath(r),
		Operation: "list", RawQuery: rawQuery, Query: rawQuery.ToPlannerParams(),
	}
	if err := h.readPipeline.Run(rc); err != nil {
		h.writeError(w, ctx, err)
		return
	}
	h.writeDocument(w, http.StatusOK, rc.Document)
}

func (h *Handler) get(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string) {
	rawQuery := h.parseQuery(r)
	rc := &RequestContext{
		Ctx: ctx, Resource: res, Tenant: h.resolveTenant(r), BasePath: h.basePath(r),
		Operation: "get", IDParam: id, RawQuery: rawQuery, Query: rawQuery.ToPlannerParams(),
	}

	pipe, err := h.buildGetPipeline()
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	if err := pipe.Run(rc); err != nil {
		h.writeError(w, ctx, err)
		return
	}
	if rc.Row == nil {
		h.writeError(w, ctx, NewError(KindNotFound, "Resource not found", fmt.Sprintf("%s/%s", res.Type, id)))
		return
	}
	h.writeDocument(w, http.StatusOK, rc.Document)
}

// buildGetPipeline reuses the collection pipeline's stages but adds a row
// picker between execute and eager-load, so a single-resource GET still
// goes through the same plan/execute/eager-load/serialize machinery.
func (h *Handler) buildGetPipeline() (*Pipeline, error) {
	p := NewPipeline()
	p.Register(StagePermission, 0, h.stagePermission)
	p.Register(StagePlan, 10, h.stagePlan, StagePermission)
	p.Register("idFilter", 15, h.stageIDFilter, StagePlan)
	p.Register(StageExecute, 20, h.stageExecute, "idFilter")
	p.Register("pickRow", 25, h.stagePickRow, StageExecute)
	p.Register(StageEagerLoad, 30, h.stageEagerLoad, "pickRow")
	p.Register(StageSerialize, 40, h.stageSerialize, StageEagerLoad)
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// stageIDFilter pins a single-resource GET to its path id directly on the
// plan, bypassing searchSchema validation: the id path parameter is not a
// client-supplied filter key and need not be declared there.
func (h *Handler) stageIDFilter(rc *RequestContext) error {
	rc.Plan.Where = append(rc.Plan.Where, planner.WhereClause{
		Op:   planner.WhereAnd,
		Expr: fmt.Sprintf("%s.%s = ?", rc.Resource.Table, rc.Resource.IDField),
		Args: []interface{}{rc.IDParam},
	})
	return nil
}

func (h *Handler) stagePickRow(rc *RequestContext) error {
	if len(rc.Rows) > 0 {
		rc.Row = rc.Rows[0]
	}
	return nil
}

func (h *Handler) create(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor) {
	if !h.acceptsMediaType(r) {
		h.writeError(w, ctx, NewError(KindUnsupportedMedia, "Unsupported media type", mediaType))
		return
	}
	body, err := h.decodeBody(r)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	if body.Data.Type != res.Type {
		h.writeError(w, ctx, NewError(KindPayload, "Resource type mismatch", body.Data.Type))
		return
	}

	if h.checker != nil {
		rc := &RequestContext{Ctx: ctx, Resource: res, Tenant: h.resolveTenant(r), Operation: "create", Body: body}
		if apiErr := h.checker.Check(ctx, rc); apiErr != nil {
			h.writeError(w, ctx, apiErr)
			return
		}
	}

	values := attributeValues(res, body.Data.Attributes)
	if body.Data.ID != nil {
		values[res.IDField] = *body.Data.ID
	}

	insert := h.db.NewInsert().Table(res.Table)
	for col, val := range values {
		insert = insert.Value(col, val)
	}
	result, err := insert.Exec(ctx)
	if err != nil {
		h.writeError(w, ctx, fmt.Errorf("insert %s: %w", res.Type, err))
		return
	}

	newID := values[res.IDField]
	if newID == nil {
		id, err := result.LastInsertId()
		if err != nil {
			h.writeError(w, ctx, fmt.Errorf("resolve created %s id: %w", res.Type, err))
			return
		}
		newID = id
	}

	var created map[string]interface{}
	if err := h.db.NewSelect().Table(res.Table).Where(fmt.Sprintf("%s = ?", res.IDField), newID).Scan(ctx, &created); err != nil {
		h.writeError(w, ctx, fmt.Errorf("reload created %s: %w", res.Type, err))
		return
	}

	if err := h.writeRelationshipLinks(ctx, res, created[res.IDField], body.Data.Relationships, false); err != nil {
		h.writeError(w, ctx, err)
		return
	}

	resource, err := Serialize(ctx, res, created, nil, h.basePath(r), nil)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	h.writeDocument(w, http.StatusCreated, Document{Data: resource, JSONAPI: &JSONAPIObject{Version: "1.1"}})
}

func (h *Handler) update(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string) {
	h.applyPartialWrite(ctx, w, r, res, id, false)
}

// upsert implements PUT: a relationship carried in the body cascades like a
// DELETE of the prior set followed by a POST of the new one, per
// relationship.ReplacePUT.
func (h *Handler) upsert(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string) {
	h.applyPartialWrite(ctx, w, r, res, id, true)
}

func (h *Handler) applyPartialWrite(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string, isPut bool) {
	if !h.acceptsMediaType(r) {
		h.writeError(w, ctx, NewError(KindUnsupportedMedia, "Unsupported media type", mediaType))
		return
	}
	body, err := h.decodeBody(r)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	if body.Data.ID != nil && *body.Data.ID != id {
		h.writeError(w, ctx, NewError(KindConflict, "Resource id mismatch", id))
		return
	}

	if h.checker != nil {
		rc := &RequestContext{Ctx: ctx, Resource: res, Tenant: h.resolveTenant(r), Operation: "update", IDParam: id, Body: body}
		if apiErr := h.checker.Check(ctx, rc); apiErr != nil {
			h.writeError(w, ctx, apiErr)
			return
		}
	}

	values := attributeValues(res, body.Data.Attributes)
	if len(values) > 0 {
		update := h.db.NewUpdate().Table(res.Table).Where(fmt.Sprintf("%s = ?", res.IDField), id)
		update = update.SetMap(values)
		if _, err := update.Exec(ctx); err != nil {
			h.writeError(w, ctx, fmt.Errorf("update %s: %w", res.Type, err))
			return
		}
	}

	if err := h.writeRelationshipLinks(ctx, res, id, body.Data.Relationships, isPut); err != nil {
		h.writeError(w, ctx, err)
		return
	}

	var row map[string]interface{}
	if err := h.db.NewSelect().Table(res.Table).Where(fmt.Sprintf("%s = ?", res.IDField), id).Scan(ctx, &row); err != nil {
		h.writeError(w, ctx, fmt.Errorf("reload %s: %w", res.Type, err))
		return
	}
	resource, err := Serialize(ctx, res, row, nil, h.basePath(r), nil)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	h.writeDocument(w, http.StatusOK, Document{Data: resource, JSONAPI: &JSONAPIObject{Version: "1.1"}})
}

func (h *Handler) delete(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id string) {
	if h.checker != nil {
		rc := &RequestContext{Ctx: ctx, Resource: res, Tenant: h.resolveTenant(r), Operation: "delete", IDParam: id}
		if apiErr := h.checker.Check(ctx, rc); apiErr != nil {
			h.writeError(w, ctx, apiErr)
			return
		}
	}
	if _, err := h.db.NewDelete().Table(res.Table).Where(fmt.Sprintf("%s = ?", res.IDField), id).Exec(ctx); err != nil {
		h.writeError(w, ctx, fmt.Errorf("delete %s: %w", res.Type, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRelated serves GET /{type}/{id}/{relatedName}: the related
// resource(s) themselves, not a linkage document (§6).
func (h *Handler) handleRelated(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id, relName string) {
	if r.Method() != http.MethodGet {
		h.writeError(w, ctx, NewError(KindValidation, "Method not allowed", r.Method()))
		return
	}
	rel, ok := res.Relationships[relName]
	if !ok {
		h.writeError(w, ctx, NewError(KindNotFound, "Relationship not found", relName))
		return
	}

	tenant := h.resolveTenant(r)
	loaded, _, target, err := h.loadRelated(ctx, res, rel, id, tenant)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}

	basePath := h.basePath(r)
	if rel.Kind == schema.HasMany || rel.Kind == schema.ManyToMany {
		resources := make([]Resource, 0, len(loaded.Records))
		for _, row := range loaded.Records {
			s, err := Serialize(ctx, target, row, nil, basePath, nil)
			if err != nil {
				h.writeError(w, ctx, err)
				return
			}
			resources = append(resources, s)
		}
		h.writeDocument(w, http.StatusOK, BuildDocument(resources, nil, nil, nil))
		return
	}

	if len(loaded.Records) == 0 {
		h.writeDocument(w, http.StatusOK, Document{Data: nil, JSONAPI: &JSONAPIObject{Version: "1.1"}})
		return
	}
	s, err := Serialize(ctx, target, loaded.Records[0], nil, basePath, nil)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	h.writeDocument(w, http.StatusOK, Document{Data: s, JSONAPI: &JSONAPIObject{Version: "1.1"}})
}

func (h *Handler) loadRelated(ctx context.Context, res *schema.ResourceDescriptor, rel *schema.RelationshipDescriptor, id, tenant string) (*relationship.Loaded, *relationship.Included, *schema.ResourceDescriptor, error) {
	var owner map[string]interface{}
	if err := h.db.NewSelect().Table(res.Table).Where(fmt.Sprintf("%s = ?", res.IDField), id).Scan(ctx, &owner); err != nil {
		return nil, nil, nil, fmt.Errorf("load owner %s: %w", res.Type, err)
	}
	included, loadedByPath, err := relationship.EagerLoad(ctx, h.loader, relationship.Lookup(h.lookup), res, []relationship.Record{owner}, []string{rel.Name}, tenant)
	if err != nil {
		return nil, nil, nil, err
	}
	target, _ := h.lookup(rel.Target)
	return loadedByPath[rel.Name], included, target, nil
}

// handleRelationship serves the relationship-linkage endpoints of §6:
// GET/POST/PATCH/DELETE /{type}/{id}/relationships/{relName}.
func (h *Handler) handleRelationship(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, id, relName string) {
	rel, ok := res.Relationships[relName]
	if !ok {
		h.writeError(w, ctx, NewError(KindNotFound, "Relationship not found", relName))
		return
	}
	tenant := h.resolveTenant(r)

	switch r.Method() {
	case http.MethodGet:
		h.relationshipLinkage(ctx, w, r, res, rel, id, tenant)
	case http.MethodPatch, http.MethodPost, http.MethodDelete:
		h.relationshipWrite(ctx, w, r, res, rel, id, tenant)
	default:
		h.writeError(w, ctx, NewError(KindValidation, "Method not allowed", r.Method()))
	}
}

func (h *Handler) relationshipLinkage(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, rel *schema.RelationshipDescriptor, id, tenant string) {
	loaded, _, _, err := h.loadRelated(ctx, res, rel, id, tenant)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}
	var idents []relationship.ResourceIdentifier
	for _, v := range loaded.FanOut {
		idents = v
		break
	}
	data := linkageData(idents, rel.Kind)
	h.writeDocument(w, http.StatusOK, Document{Data: data, JSONAPI: &JSONAPIObject{Version: "1.1"}})
}

func (h *Handler) relationshipWrite(ctx context.Context, w common.ResponseWriter, r common.Request, res *schema.ResourceDescriptor, rel *schema.RelationshipDescriptor, id, tenant string) {
	body, err := r.Body()
	if err != nil {
		h.writeError(w, ctx, NewError(KindPayload, "Failed to read request body", err.Error()))
		return
	}
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		h.writeError(w, ctx, NewError(KindPayload, "Invalid request body", err.Error()))
		return
	}
	idents, isMany, err := decodeLinkage(raw.Data)
	if err != nil {
		h.writeError(w, ctx, err)
		return
	}

	switch {
	case rel.Kind == schema.BelongsTo:
		var targetID interface{}
		if !isMany && len(idents) == 1 {
			targetID = idents[0].ID
		}
		if err := relationship.SetBelongsTo(ctx, h.writer, res, rel, id, targetID); err != nil {
			h.writeError(w, ctx, err)
			return
		}
	case rel.Kind == schema.HasMany:
		target, _ := h.lookup(rel.Target)
		ids := identIDs(idents)
		var err error
		switch r.Method() {
		case http.MethodPost:
			err = relationship.AddHasMany(ctx, h.writer, target, rel, id, ids)
		case http.MethodDelete:
			err = relationship.RemoveHasMany(ctx, h.writer, target, rel, ids)
		default:
			err = relationship.ReplaceHasMany(ctx, h.loader, h.writer, res, target, rel, id, ids)
		}
		if err != nil {
			h.writeError(w, ctx, err)
			return
		}
	case rel.Kind == schema.ManyToMany:
		ids := identIDs(idents)
		var err error
		switch r.Method() {
		case http.MethodPost:
			err = relationship.AddManyToMany(ctx, h.writer, tenant, res, rel, id, ids)
		case http.MethodDelete:
			err = relationship.RemoveManyToMany(ctx, h.writer, tenant, res, rel, id, ids)
		default:
			err = relationship.ReplaceManyToMany(ctx, h.writer, tenant, res, rel, id, ids)
		}
		if err != nil {
			h.writeError(w, ctx, err)
			return
		}
	}

	h.relationshipLinkage(ctx, w, r, res, rel, id, tenant)
}

// writeRelationshipLinks applies the relationship entries of a create/update
// request body. isPut selects ReplacePUT's delete-then-insert cascade for
// manyToMany relationships; create/PATCH use the additive/targeted writers.
func (h *Handler) writeRelationshipLinks(ctx context.Context, res *schema.ResourceDescriptor, ownerID interface{}, rels map[string]RequestRelationship, isPut bool) error {
	for name, body := range rels {
		rel, ok := res.Relationships[name]
		if !ok {
			return NewError(KindValidation, "Unknown relationship", name)
		}
		raw, err := json.Marshal(body.Data)
		if err != nil {
			return err
		}
		idents, _, err := decodeLinkage(raw)
		if err != nil {
			return err
		}

		switch rel.Kind {
		case schema.BelongsTo:
			var targetID interface{}
			if len(idents) == 1 {
				targetID = idents[0].ID
			}
			if err := relationship.SetBelongsTo(ctx, h.writer, res, rel, ownerID, targetID); err != nil {
				return err
			}
		case schema.HasMany:
			target, _ := h.lookup(rel.Target)
			ids := identIDs(idents)
			if isPut {
				err = relationship.ReplaceHasMany(ctx, h.loader, h.writer, res, target, rel, ownerID, ids)
			} else {
				err = relationship.AddHasMany(ctx, h.writer, target, rel, ownerID, ids)
			}
			if err != nil {
				return err
			}
		case schema.ManyToMany:
			ids := identIDs(idents)
			if isPut {
				err = relationship.ReplacePUT(ctx, h.writer, "", res, rel, ownerID, ids)
			} else {
				err = relationship.AddManyToMany(ctx, h.writer, "", res, rel, ownerID, ids)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) parseQuery(r common.Request) QueryParams {
	u, err := url.Parse(r.URL())
	if err != nil {
		return QueryParams{Filters: map[string]string{}, Fields: map[string][]string{}}
	}
	qp := ParseQuery(u.Query())
	if qp.Page.After != "" && h.signer != nil {
		if tok, err := h.signer.Verify(qp.Page.After); err == nil {
			qp.Page.After = tok
		}
	}
	if qp.Page.Before != "" && h.signer != nil {
		if tok, err := h.signer.Verify(qp.Page.Before); err == nil {
			qp.Page.Before = tok
		}
	}
	return qp
}

func (h *Handler) decodeBody(r common.Request) (*RequestDocument, error) {
	raw, err := r.Body()
	if err != nil {
		return nil, NewError(KindPayload, "Failed to read request body", err.Error())
	}
	var doc RequestDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewError(KindPayload, "Invalid JSON:API document", err.Error())
	}
	if doc.Data.Type == "" {
		return nil, NewError(KindPayload, "Missing data.type", "")
	}
	return &doc, nil
}

func (h *Handler) acceptsMediaType(r common.Request) bool {
	ct := r.Header("Content-Type")
	return ct == "" || strings.Contains(ct, mediaType) || strings.Contains(ct, "application/json")
}

// basePath derives the scheme+host prefix for self/related links (§7 link
// object) from the incoming request, honoring a reverse proxy's
// X-Forwarded-Proto/X-Forwarded-Host when present.
func (h *Handler) basePath(r common.Request) string {
	req := r.UnderlyingRequest()
	if req == nil {
		return ""
	}

	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := req.Host
	if fwd := req.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	if host == "" {
		return ""
	}

	return scheme + "://" + host
}

func (h *Handler) writeDocument(w common.ResponseWriter, status int, doc Document) {
	w.SetHeader("Content-Type", mediaType)
	w.WriteHeader(status)
	_ = w.WriteJSON(doc)
}

func (h *Handler) writeError(w common.ResponseWriter, ctx context.Context, err error) {
	doc, status := Render(ctx, h.tracker, err)
	w.SetHeader("Content-Type", mediaType)
	w.WriteHeader(status)
	_ = w.WriteJSON(doc)
}

func attributeValues(res *schema.ResourceDescriptor, attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for name, val := range attrs {
		fd, ok := res.Fields[name]
		if !ok || fd.Virtual || fd.Getter != nil {
			continue
		}
		out[fd.Column] = val
	}
	return out
}

func identIDs(idents []relationship.ResourceIdentifier) []interface{} {
	out := make([]interface{}, len(idents))
	for i, id := range idents {
		out[i] = id.ID
	}
	return out
}

func decodeLinkage(raw json.RawMessage) ([]relationship.ResourceIdentifier, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	if raw[0] == '[' {
		var arr []ResourceIdentifier
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, true, NewError(KindPayload, "Invalid relationship linkage", err.Error())
		}
		out := make([]relationship.ResourceIdentifier, len(arr))
		for i, a := range arr {
			out[i] = relationship.ResourceIdentifier{Type: a.Type, ID: a.ID}
		}
		return out, true, nil
	}
	var single ResourceIdentifier
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, false, NewError(KindPayload, "Invalid relationship linkage", err.Error())
	}
	return []relationship.ResourceIdentifier{{Type: single.Type, ID: single.ID}}, false, nil
}
