package jsonapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/go-jsonapi/server/pkg/common"
	"github.com/go-jsonapi/server/pkg/common/adapters/router"
)

// MiddlewareFunc wraps an http.Handler with additional behavior (auth,
// tracing, ...), mirroring the teacher transports' middleware hook.
type MiddlewareFunc func(http.Handler) http.Handler

// SetupMuxRoutes registers the full §6 endpoint table against a
// gorilla/mux router: one generic handler per route shape, dispatching on
// the path-extracted resource type rather than one route per registered
// model (every resource type shares the same JSON:API semantics).
func SetupMuxRoutes(muxRouter *mux.Router, handler *Handler, authMiddleware MiddlewareFunc) {
	corsConfig := common.DefaultCORSConfig()

	wrap := func(fn http.HandlerFunc) http.Handler {
		var h http.Handler = fn
		if authMiddleware != nil {
			h = authMiddleware(h)
		}
		return h
	}

	collection := muxHandlerFunc(handler, corsConfig, false, false, false)
	single := muxHandlerFunc(handler, corsConfig, true, false, false)
	related := muxHandlerFunc(handler, corsConfig, true, true, false)
	relationship := muxHandlerFunc(handler, corsConfig, true, false, true)

	muxRouter.Handle("/{type}", wrap(collection)).Methods("GET", "POST", "OPTIONS")
	muxRouter.Handle("/{type}/{id}", wrap(single)).Methods("GET", "PATCH", "PUT", "DELETE", "OPTIONS")
	muxRouter.Handle("/{type}/{id}/relationships/{relationship}", wrap(relationship)).Methods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	muxRouter.Handle("/{type}/{id}/{related}", wrap(related)).Methods("GET", "OPTIONS")
}

func muxHandlerFunc(handler *Handler, corsConfig common.CORSConfig, withID, related, relationship bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respAdapter := router.NewHTTPResponseWriter(w)
		reqAdapter := router.NewHTTPRequest(r)
		common.SetCORSHeaders(respAdapter, corsConfig)

		if r.Method == http.MethodOptions {
			return
		}

		vars := mux.Vars(r)
		params := map[string]string{"type": vars["type"]}
		if withID {
			params["id"] = vars["id"]
		}
		if related {
			params["related"] = vars["related"]
		}
		if relationship {
			params["relationship"] = vars["relationship"]
		}
		handler.Handle(respAdapter, reqAdapter, params)
	}
}
