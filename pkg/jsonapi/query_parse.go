package jsonapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-jsonapi/server/pkg/planner"
)

// ParseQuery decodes the JSON:API query parameters of §6 (`include`,
// `fields[type]`, `filter[key]`, `sort`, `page[...]`) from a raw query
// string into the pipeline's QueryParams shape.
func ParseQuery(raw url.Values) QueryParams {
	qp := QueryParams{Filters: make(map[string]string), Fields: make(map[string][]string)}

	if include := raw.Get("include"); include != "" {
		for _, p := range strings.Split(include, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				qp.Include = append(qp.Include, p)
			}
		}
	}

	if sort := raw.Get("sort"); sort != "" {
		for _, s := range strings.Split(sort, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				qp.Sort = append(qp.Sort, s)
			}
		}
	}

	for key, values := range raw {
		switch {
		case strings.HasPrefix(key, "filter[") && strings.HasSuffix(key, "]"):
			field := key[len("filter[") : len(key)-1]
			if len(values) > 0 {
				qp.Filters[field] = values[0]
			}
		case strings.HasPrefix(key, "fields[") && strings.HasSuffix(key, "]"):
			typeName := key[len("fields[") : len(key)-1]
			if len(values) > 0 {
				qp.Fields[typeName] = splitTrim(values[0], ",")
			}
		case key == "page[number]":
			if n, err := strconv.Atoi(values[0]); err == nil {
				qp.Page.Number = &n
			}
		case key == "page[size]":
			if n, err := strconv.Atoi(values[0]); err == nil {
				qp.Page.Size = &n
			}
		case key == "page[after]":
			qp.Page.After = values[0]
		case key == "page[before]":
			qp.Page.Before = values[0]
		}
	}

	return qp
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ToPlannerParams converts the parsed HTTP query shape into planner.QueryParams.
func (qp QueryParams) ToPlannerParams() planner.QueryParams {
	return planner.QueryParams{
		Include: qp.Include,
		Fields:  qp.Fields,
		Filters: qp.Filters,
		Sort:    qp.Sort,
		Page: planner.PageParams{
			Number: qp.Page.Number,
			Size:   qp.Page.Size,
			After:  qp.Page.After,
			Before: qp.Page.Before,
		},
	}
}
