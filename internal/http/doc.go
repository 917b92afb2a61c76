// Package http provides the HTTP handlers and middleware for the resort API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. The token
//     is also surfaced via the `X-Session-Token` header and a `session_token`
//     cookie. DELETE /sessions/current revokes it.
//   - GET /schedule?from&to: the composed class schedule for a half-open day
//     window, with studio conflict warnings.
//   - GET/POST /schedule/grid and PUT /schedule/grid/cell: weekly template
//     editing for staff. POST /schedule/materialize?from&to upserts sessions
//     for the window and reports {"upserts","skipped"}.
//   - GET /sessions and GET /sessions/{id}/availability: materialized class
//     sessions with remaining-seat availability.
//   - GET /availability?check_in&check_out&guests&rooms[&room_type]: per
//     room-type unit availability for a stay window.
//   - POST /bookings, POST /bookings/{id}/confirm, POST /bookings/{id}/cancel,
//     GET /bookings/{id}: the booking lifecycle.
//   - /rules CRUD: recurring-rule management for staff.
//   - POST /treatments/{id}/slots?from&to and GET /treatments/{id}/slots:
//     treatment slot generation and listing.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
