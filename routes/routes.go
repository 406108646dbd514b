package routes

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pantree/cooking"
	"pantree/live"
	"pantree/middleware"
	"pantree/ratelim"
	"pantree/search"
)

// Prefixes every API route is served under.
var Prefixes = []string{"/api", "/api/v1"}

// Deps are the handlers and guards the routes are built from. Search and Hub
// may be nil.
type Deps struct {
	Cooking     *cooking.Handlers
	Search      search.Provider
	Hub         *live.Hub
	Auth        *middleware.Auth
	RateLimiter *ratelim.RateLimiter
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// handle registers h and labels its metrics with path.
func handle(router *httprouter.Router, method, path string, h httprouter.Handle) {
	router.Handle(method, path, middleware.Route(path, h))
}

func AddHealthRoutes(router *httprouter.Router) {
	metrics := promhttp.Handler()
	handle(router, http.MethodGet, "/health", Index)
	handle(router, http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		metrics.ServeHTTP(w, r)
	})
}

func AddFoodRoutes(router *httprouter.Router, h *cooking.Handlers, auth *middleware.Auth) {
	for _, p := range Prefixes {
		handle(router, http.MethodGet, p+"/foods", h.GetFoods)
		handle(router, http.MethodPost, p+"/foods", auth.Authenticate(h.AddFood))
		handle(router, http.MethodGet, p+"/foods/:id", h.GetFood)
		handle(router, http.MethodPut, p+"/foods/:id", auth.Authenticate(h.EditFood))
		handle(router, http.MethodDelete, p+"/foods/:id", auth.Authenticate(h.DeleteFood))
		handle(router, http.MethodGet, p+"/foods/:id/recipes", h.GetRecipesUsingFood)
	}
}

func AddRecipeRoutes(router *httprouter.Router, h *cooking.Handlers, auth *middleware.Auth) {
	for _, p := range Prefixes {
		handle(router, http.MethodGet, p+"/recipes", h.GetRecipes)
		handle(router, http.MethodPost, p+"/recipes", auth.Authenticate(h.AddRecipe))
		handle(router, http.MethodGet, p+"/recipes/:id", h.GetRecipe)
		handle(router, http.MethodPut, p+"/recipes/:id", auth.Authenticate(h.EditRecipe))
		handle(router, http.MethodDelete, p+"/recipes/:id", auth.Authenticate(h.DeleteRecipe))
		handle(router, http.MethodGet, p+"/recipes/:id/image", h.GetRecipeImage)
		handle(router, http.MethodPost, p+"/recipes/:id/image", auth.Authenticate(h.SetRecipeImage))
		handle(router, http.MethodDelete, p+"/recipes/:id/image", auth.Authenticate(h.DeleteRecipeImage))
		handle(router, http.MethodGet, p+"/recipes/:id/card", h.GetRecipeCard)
	}
}

func AddSearchRoutes(router *httprouter.Router, provider search.Provider, rateLimiter *ratelim.RateLimiter) {
	h := search.SearchFoods(provider)
	if rateLimiter != nil {
		h = rateLimiter.Limit(h)
	}
	for _, p := range Prefixes {
		handle(router, http.MethodGet, p+"/search/foods/:query", h)
	}
}

func AddLiveRoutes(router *httprouter.Router, hub *live.Hub) {
	if hub == nil {
		return
	}
	for _, p := range Prefixes {
		handle(router, http.MethodGet, p+"/live", live.Handler(hub))
	}
}

// RoutesWrapper registers every route group on router.
func RoutesWrapper(router *httprouter.Router, deps Deps) {
	AddHealthRoutes(router)
	AddFoodRoutes(router, deps.Cooking, deps.Auth)
	AddRecipeRoutes(router, deps.Cooking, deps.Auth)
	AddSearchRoutes(router, deps.Search, deps.RateLimiter)
	AddLiveRoutes(router, deps.Hub)
}
