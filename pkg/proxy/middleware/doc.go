// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// Middleware functions are chained in a specific order:
//
//	handler = Recovery(Logging(RequestID(handler)))
//
// Order (innermost to outermost):
//  1. RequestID: Generate and propagate request ID
//  2. Logging: Log request/response details
//  3. Recovery: Recover from panics
//
// CORS is not handled here: the gateway applies CORS per route inside the
// fetch pipeline, because each route carries its own policy.
package middleware
