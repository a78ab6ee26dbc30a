package httpapi

import "net/http"

// PublicPath reports whether a path is reachable without a bearer token.
func PublicPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/login", "/refresh_access_token", "/system/health":
		return true
	}
	return false
}

// NewRouter assembles the full API. mw is the bearer middleware; the
// request log wrapper runs outermost so denied requests are recorded too.
func NewRouter(svc *Service, wsHandler http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.Handler {
		handler := http.Handler(h)
		if mw != nil {
			handler = mw(handler)
		}
		return handler
	}

	mux.Handle("/login", wrap(svc.handleLogin))
	mux.Handle("/refresh_access_token", wrap(svc.handleRefresh))
	mux.Handle("/logout", wrap(svc.handleLogout))

	mux.Handle("/documents", wrap(svc.handleDocuments))
	mux.Handle("/documents/", wrap(svc.handleDocumentByID))
	mux.Handle("/collections", wrap(svc.handleCollections))
	mux.Handle("/collections/", wrap(svc.handleCollectionByID))
	mux.Handle("/graphs", wrap(svc.handleGraphs))
	mux.Handle("/graphs/", wrap(svc.handleGraphByID))
	mux.Handle("/prompts", wrap(svc.handlePrompts))
	mux.Handle("/prompts/", wrap(svc.handlePromptByName))
	mux.Handle("/users", wrap(svc.handleUsers))
	mux.Handle("/users/", wrap(svc.handleUserByID))
	mux.Handle("/system/", wrap(svc.handleSystem))
	mux.Handle("/rag", wrap(svc.handleRAG))

	if wsHandler != nil {
		if mw != nil {
			mux.Handle("/ws/events", mw(wsHandler))
		} else {
			mux.Handle("/ws/events", wsHandler)
		}
	}

	return RequestLog(svc.logs, mux)
}
