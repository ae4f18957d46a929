package router

import (
	"context"
	"strings"
	"sync"

	"github.com/rohmanhakim/crawlkit/internal/fetcher"
	"github.com/rohmanhakim/crawlkit/pkg/failure"
)

/*
Content router

Centralises the mapping of HTTP Content-Type values to handler callables so
that adding support for new types (XML, JSON feeds, CSV, PDF, ...) never
requires modifying the engine core. Handlers are the boundary to the
extractor ecosystem: the engine only consumes the links they discover and
forwards their payload to sinks untouched.
*/

// HandlerOutput is what a handler gives back to the engine.
type HandlerOutput struct {
	// DiscoveredLinks are raw references found in the document, resolved
	// and filtered later by the scheduler.
	DiscoveredLinks []string
	// Payload is handler-specific data passed through to sinks.
	Payload any
}

// Handler processes one fetched response.
type Handler func(ctx context.Context, result *fetcher.FetchResult) (HandlerOutput, failure.ClassifiedError)

// ContentRouter maps media types to handlers.
// Registration is case-insensitive and strips parameters ("; charset=...").
type ContentRouter struct {
	mu           sync.RWMutex
	handlers     map[string]Handler
	defaultRoute Handler
}

func NewContentRouter() *ContentRouter {
	return &ContentRouter{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a media type. Registering the same type twice
// overwrites the previous handler. Returns the router for chaining.
func (r *ContentRouter) Register(contentType string, handler Handler) *ContentRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[normalizeType(contentType)] = handler
	return r
}

// SetDefault sets the fallback handler used when no registered type
// matches. Returns the router for chaining.
func (r *ContentRouter) SetDefault(handler Handler) *ContentRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultRoute = handler
	return r
}

// Unregister removes the handler for a media type. Reports whether one was
// registered.
func (r *ContentRouter) Unregister(contentType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeType(contentType)
	_, found := r.handlers[key]
	delete(r.handlers, key)
	return found
}

// Route dispatches the result to the matching handler, or the default, or
// returns an empty output when neither exists.
func (r *ContentRouter) Route(ctx context.Context, contentType string, result *fetcher.FetchResult) (HandlerOutput, failure.ClassifiedError) {
	r.mu.RLock()
	handler, found := r.handlers[normalizeType(contentType)]
	if !found {
		handler = r.defaultRoute
	}
	r.mu.RUnlock()

	if handler == nil {
		return HandlerOutput{}, nil
	}
	return handler(ctx, result)
}

// Handles reports whether a handler (not counting the default) exists for
// the media type.
func (r *ContentRouter) Handles(contentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.handlers[normalizeType(contentType)]
	return found
}

// normalizeType lower-cases a Content-Type value and strips parameters.
func normalizeType(contentType string) string {
	media := contentType
	if idx := strings.Index(media, ";"); idx != -1 {
		media = media[:idx]
	}
	return strings.ToLower(strings.TrimSpace(media))
}
