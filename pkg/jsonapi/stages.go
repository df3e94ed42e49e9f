package jsonapi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-jsonapi/server/pkg/pagination"
	"github.com/go-jsonapi/server/pkg/planner"
	"github.com/go-jsonapi/server/pkg/relationship"
	"github.com/go-jsonapi/server/pkg/schema"
)

// Stage names, used both for registration and for DependsOn edges.
const (
	StagePermission = "permission"
	StagePlan       = "plan"
	StageExecute    = "execute"
	StageEagerLoad  = "eagerLoad"
	StageSerialize  = "serialize"
)

// buildReadPipeline assembles the collection (list) request pipeline:
// permission check, plan build, query execution, eager load, serialize.
// A single-resource GET uses buildGetPipeline, which registers these same
// stages plus an id filter and a row picker.
// Each stage is registered independently (rather than inlined in the
// handler) so a caller can splice in additional stages by name (§4.2,
// §9 "explicit ordered pipeline").
func (h *Handler) buildReadPipeline() (*Pipeline, error) {
	p := NewPipeline()
	p.Register(StagePermission, 0, h.stagePermission)
	p.Register(StagePlan, 10, h.stagePlan, StagePermission)
	p.Register(StageExecute, 20, h.stageExecute, StagePlan)
	p.Register(StageEagerLoad, 30, h.stageEagerLoad, StageExecute)
	p.Register(StageSerialize, 40, h.stageSerialize, StageEagerLoad)
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) stagePermission(rc *RequestContext) error {
	if h.checker == nil {
		return nil
	}
	if apiErr := h.checker.Check(rc.Ctx, rc); apiErr != nil {
		return apiErr
	}
	return nil
}

func (h *Handler) stagePlan(rc *RequestContext) error {
	lookup := planner.Lookup(h.lookup)
	plan, err := planner.BuildPlan(rc.Resource, rc.Query, h.cfg, lookup)
	if err != nil {
		return err
	}
	rc.Plan = plan
	return nil
}

func (h *Handler) stageExecute(rc *RequestContext) error {
	res := rc.Resource

	selectQuery := planner.Execute(h.db.NewSelect(), rc.Plan)
	var rows []map[string]interface{}
	if err := selectQuery.Scan(rc.Ctx, &rows); err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	switch rc.Plan.Pagination.Mode {
	case planner.PageCursor:
		backward := rc.Plan.Pagination.CursorBackward
		page, hasMore := pagination.SplitCursorPage(rows, rc.Plan.Pagination.Size, backward)
		rc.Rows = toRecords(page)
		rc.PageResult = pagination.Result{
			Mode: pagination.ModeCursor, Size: rc.Plan.Pagination.Size, HasMore: hasMore, Total: -1,
		}
		if len(page) > 0 {
			order := rc.Plan.Order
			first, _ := pagination.EncodeCursor(pagination.RowCursorValues(page[0], order))
			last, _ := pagination.EncodeCursor(pagination.RowCursorValues(page[len(page)-1], order))
			rc.PageResult.PrevCursor = first
			rc.PageResult.NextCursor = last
		}
	default:
		result, err := h.resolveOffsetCount(rc, res)
		if err != nil {
			return err
		}
		rc.Rows = toRecords(rows)
		rc.PageResult = result
	}

	return nil
}

// resolveOffsetCount computes the offset-pagination total, going through the
// handler's total-count cache when one is installed so repeat list requests
// against the same filter combination don't each re-run a COUNT(*).
func (h *Handler) resolveOffsetCount(rc *RequestContext, res *schema.ResourceDescriptor) (pagination.Result, error) {
	runCount := func() (pagination.Result, error) {
		countQuery := planner.Execute(h.db.NewSelect(), &planner.Plan{
			Resource: res, Joins: rc.Plan.Joins, Where: rc.Plan.Where, Distinct: rc.Plan.Distinct,
		})
		return pagination.ResolveOffset(rc.Ctx, countQuery, rc.Plan, h.cfg)
	}

	if h.totalCache == nil || !h.cfg.EnablePaginationCounts {
		return runCount()
	}

	key := totalCountCacheKey(rc.Tenant, res.Type, rc.Plan)
	var cached pagination.Result
	if err := h.totalCache.Get(rc.Ctx, key, &cached); err == nil {
		return cached, nil
	}

	result, err := runCount()
	if err != nil {
		return result, err
	}
	_ = h.totalCache.Set(rc.Ctx, key, result, h.totalCacheTTL)
	return result, nil
}

func totalCountCacheKey(tenant, resourceType string, plan *planner.Plan) string {
	raw := fmt.Sprintf("%s|%s|%v|%v|%v", tenant, resourceType, plan.Where, plan.Joins, plan.Distinct)
	sum := sha256.Sum256([]byte(raw))
	return "jsonapi:total:" + hex.EncodeToString(sum[:])
}

func (h *Handler) stageEagerLoad(rc *RequestContext) error {
	if len(rc.Plan.IncludePaths) == 0 {
		return nil
	}
	parents := rc.Rows
	if rc.Operation == "get" && rc.Row != nil {
		parents = []relationship.Record{rc.Row}
	}
	if len(parents) == 0 {
		return nil
	}

	included, loaded, err := relationship.EagerLoad(rc.Ctx, h.loader, relationship.Lookup(h.lookup), rc.Resource, parents, rc.Plan.IncludePaths, rc.Tenant)
	if err != nil {
		return err
	}
	rc.Included = included
	rc.Loaded = loaded
	return nil
}

func (h *Handler) stageSerialize(rc *RequestContext) error {
	requested := fieldSet(rc.Query.Fields[rc.Resource.Type])

	rows := rc.Rows
	if rc.Operation == "get" {
		rows = nil
		if rc.Row != nil {
			rows = []relationship.Record{rc.Row}
		}
	}

	resources := make([]Resource, 0, len(rows))
	for _, row := range rows {
		serialized, err := Serialize(rc.Ctx, rc.Resource, row, rc.Loaded, rc.BasePath, requested)
		if err != nil {
			return err
		}
		resources = append(resources, serialized)
	}

	var included []Resource
	if rc.Included != nil {
		included, _ = SerializeIncluded(rc.Ctx, relationship.Lookup(h.lookup), rc.Included, nil, rc.BasePath)
	}

	if rc.Operation == "get" {
		if len(resources) == 0 {
			rc.Document = Document{Data: nil, JSONAPI: &JSONAPIObject{Version: "1.1"}}
			return nil
		}
		rc.Document = Document{Data: resources[0], Included: included, JSONAPI: &JSONAPIObject{Version: "1.1"}}
		return nil
	}

	links := h.pageLinks(rc)
	rc.Document = BuildDocument(resources, included, links, pageMeta(rc.PageResult))
	return nil
}

// pageMeta surfaces the resolved pagination total into the document's top
// level meta object. Cursor pagination and count-disabled offset pagination
// report Total == -1, in which case no meta is emitted.
func pageMeta(page pagination.Result) map[string]interface{} {
	if page.Mode != pagination.ModeOffset || page.Total < 0 {
		return nil
	}
	return map[string]interface{}{"total": page.Total}
}

func (h *Handler) pageLinks(rc *RequestContext) pagination.Links {
	selfURL := fmt.Sprintf("%s/%s", rc.BasePath, rc.Resource.URLPrefixOrType())
	if rc.PageResult.Mode == pagination.ModeOffset {
		return pagination.BuildOffsetLinks(selfURL, rc.PageResult)
	}
	links := pagination.Links{"self": selfURL}
	if rc.PageResult.HasMore && rc.PageResult.NextCursor != "" {
		links["next"] = fmt.Sprintf("%s?page[after]=%s", selfURL, h.signCursor(rc.PageResult.NextCursor))
	}
	if rc.PageResult.PrevCursor != "" {
		links["prev"] = fmt.Sprintf("%s?page[before]=%s", selfURL, h.signCursor(rc.PageResult.PrevCursor))
	}
	return links
}

func (h *Handler) signCursor(token string) string {
	if h.signer == nil {
		return token
	}
	return h.signer.Sign(token)
}

func fieldSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}
