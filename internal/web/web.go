// Package web implements an HTMX-based web dashboard mirroring the TUI functionality.
//
// # HTMX Dashboard Implementation Plan
//
// # Architecture
//
// The dashboard replicates the two-view TUI workflow using server-side
// rendering with HTMX for dynamic updates. Each view corresponds to a
// template and handler:
//
//  1. Listener List: Server-rendered table of enrolled users with hx-get
//     for summary preview
//  2. Weekly Summary: HTMX partial swap showing ranked tracks and artists,
//     with week navigation links
//
// Core Components
//
//   - HTTP Server: the existing server.BasicRouter with html/template rendering
//   - Service Integration: Uses the same repositories and tasks.Aggregator as the TUI
//   - Enrollment: Reuses server.EnrollHandler for /login and /callback
//
// Routes
//
//	GET  /                        → Listener list view
//	GET  /login                   → OAuth initiation (existing)
//	GET  /callback                → OAuth completion (existing)
//	GET  /users/{id}/summary      → HTMX partial: current week summary
//	GET  /users/{id}/summary/{yr}/{wk} → HTMX partial: specific ISO week
//
// Templates
//
//   - base.html: Layout with navigation
//   - users.html: Table with hx-get on rows
//   - summary.html: Partial reusing the formatter's ranking helpers
//
// # State Management
//
// The dashboard is stateless: every view renders from the store, and week
// navigation is encoded in the URL. No sessions are needed because the
// dashboard reads enrolled users rather than acting on behalf of one.
//
// Status: planned, not yet implemented.
package web
