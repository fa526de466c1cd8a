// Package middleware holds the request pipeline stages of the docsite server
// and the Chain that composes them.
package middleware

import (
	"fmt"
	"net/http"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares in the order they were added: the first
// middleware is the outermost wrapper and sees the request first and the
// response last.
//
// Example with middlewares [A, B, C] and handler H:
//   - Execution: A(B(C(H)))
//   - Request flow: A -> B -> C -> H
//   - Response flow: H -> C -> B -> A
//
// Apply does not modify the chain and is safe for concurrent use once the
// chain is built.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middlewares, outermost first.
func NewChain(middlewares ...Middleware) *Chain {
	chain := &Chain{middlewares: make([]Middleware, 0, len(middlewares))}
	for _, m := range middlewares {
		chain.AddMiddleware(m)
	}
	return chain
}

// AddMiddleware appends a middleware as the new innermost stage.
func (c *Chain) AddMiddleware(middleware Middleware) {
	if middleware == nil {
		panic("middleware.Chain: middleware cannot be nil")
	}
	c.middlewares = append(c.middlewares, middleware)
}

// Apply wraps handler with every middleware in the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware.Chain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("middleware.Chain.Apply: middleware at index %d returned nil handler", i))
		}
	}

	return wrapped
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}
