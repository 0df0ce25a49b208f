package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the API. The router itself
// performs no business logic; it only dispatches.
//
// Routes:
//
//	POST   /api/register                                  → authHandler.Register
//	POST   /api/login                                     → authHandler.Login
//	GET    /api/validate                                  → authHandler.Validate
//	POST   /api/logout                                    → authHandler.Logout
//	GET    /api/forum/posts                               → forumHandler.ListThreads
//	POST   /api/forum/posts                               → forumHandler.CreateThread
//	POST   /api/forum/posts/{threadID}/replies            → forumHandler.CreateReply
//	DELETE /api/forum/posts/purge                         → forumHandler.PurgeAll
//	DELETE /api/forum/posts/{threadID}                    → forumHandler.DeleteThread
//	DELETE /api/forum/posts/{threadID}/replies/{replyID}  → forumHandler.DeleteReply
//	POST   /api/purchases                                 → purchaseHandler.Record
//	GET    /api/purchases                                 → purchaseHandler.List
//
// Middleware chain (applied in order):
//  1. CORS                        — reflects Origin, answers OPTIONS preflight with 204
//  2. WithRequestLogging(logger)  — logs each request
func NewRouter(
	authHandler *AuthHandler,
	forumHandler *ForumHandler,
	purchaseHandler *PurchaseHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/validate", authHandler.Validate)
		r.Post("/logout", authHandler.Logout)

		r.Route("/forum/posts", func(r chi.Router) {
			r.Get("/", forumHandler.ListThreads)
			r.Post("/", forumHandler.CreateThread)
			// /purge registered before the {threadID} wildcard so the
			// literal path wins.
			r.Delete("/purge", forumHandler.PurgeAll)
			r.Post("/{threadID}/replies", forumHandler.CreateReply)
			r.Delete("/{threadID}", forumHandler.DeleteThread)
			r.Delete("/{threadID}/replies/{replyID}", forumHandler.DeleteReply)
		})

		r.Post("/purchases", purchaseHandler.Record)
		r.Get("/purchases", purchaseHandler.List)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Not found: " + req.URL.Path,
		})
	})

	return r
}
