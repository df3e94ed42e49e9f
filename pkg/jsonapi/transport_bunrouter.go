package jsonapi

import (
	"net/http"

	"github.com/uptrace/bunrouter"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/common/adapters/router"
)

// BunRouterHandler is satisfied by both *bunrouter.Router and *bunrouter.Group,
// so SetupBunRouterRoutes can mount under a prefix group as well as the root.
type BunRouterHandler interface {
	Handle(method, path string, handler bunrouter.HandlerFunc)
}

// SetupBunRouterRoutes registers the full §6 endpoint table against an
// uptrace/bunrouter router or group.
func SetupBunRouterRoutes(r BunRouterHandler, handler *Handler) {
	corsConfig := common.DefaultCORSConfig()

	r.Handle("GET", "/:type", bunHandlerFunc(handler, corsConfig, false, false, false))
	r.Handle("POST", "/:type", bunHandlerFunc(handler, corsConfig, false, false, false))
	r.Handle("OPTIONS", "/:type", bunOptionsFunc(corsConfig))

	r.Handle("GET", "/:type/:id", bunHandlerFunc(handler, corsConfig, true, false, false))
	r.Handle("PATCH", "/:type/:id", bunHandlerFunc(handler, corsConfig, true, false, false))
	r.Handle("PUT", "/:type/:id", bunHandlerFunc(handler, corsConfig, true, false, false))
	r.Handle("DELETE", "/:type/:id", bunHandlerFunc(handler, corsConfig, true, false, false))
	r.Handle("OPTIONS", "/:type/:id", bunOptionsFunc(corsConfig))

	r.Handle("GET", "/:type/:id/relationships/:relationship", bunHandlerFunc(handler, corsConfig, true, false, true))
	r.Handle("POST", "/:type/:id/relationships/:relationship", bunHandlerFunc(handler, corsConfig, true, false, true))
	r.Handle("PATCH", "/:type/:id/relationships/:relationship", bunHandlerFunc(handler, corsConfig, true, false, true))
	r.Handle("DELETE", "/:type/:id/relationships/:relationship", bunHandlerFunc(handler, corsConfig, true, false, true))
	r.Handle("OPTIONS", "/:type/:id/relationships/:relationship", bunOptionsFunc(corsConfig))

	r.Handle("GET", "/:type/:id/:related", bunHandlerFunc(handler, corsConfig, true, true, false))
	r.Handle("OPTIONS", "/:type/:id/:related", bunOptionsFunc(corsConfig))
}

func bunHandlerFunc(handler *Handler, corsConfig common.CORSConfig, withID, related, relationship bool) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		respAdapter := router.NewHTTPResponseWriter(w)
		reqAdapter := router.NewBunRouterRequest(req)
		common.SetCORSHeaders(respAdapter, corsConfig)

		params := map[string]string{"type": req.Param("type")}
		if withID {
			params["id"] = req.Param("id")
		}
		if related {
			params["related"] = req.Param("related")
		}
		if relationship {
			params["relationship"] = req.Param("relationship")
		}
		handler.Handle(respAdapter, reqAdapter, params)
		return nil
	}
}

func bunOptionsFunc(corsConfig common.CORSConfig) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		respAdapter := router.NewHTTPResponseWriter(w)
		common.SetCORSHeaders(respAdapter, corsConfig)
		return nil
	}
}
