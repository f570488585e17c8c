// Package http provides HTTP handlers and middleware for the studio API.
//
// The router exposes the following endpoints:
//   - POST /studio/schedule: creates a single session, or a weekly series when
//     the body carries a `recurring` object. Responds 201 with the created
//     session(s) and per-date skip detail, 409 with structured conflicts.
//   - GET /studio/schedule?from=&to=: lists sessions intersecting [from, to)
//     with class, teacher and location names and active booking counts.
//   - GET /studio/schedule/conflicts: dry-runs the create-time conflict check
//     for `teacherId`, `locationId`, `start` and `end` without persisting.
//   - DELETE /studio/schedule: bulk delete by `ids` or `recurringGroupId`,
//     optionally `futureOnly`. Refused with 409 when any target session holds
//     an active booking.
//   - PATCH /studio/schedule: bulk reassign of `teacherId` and/or `locationId`
//     over the same target shape; conflicts against the new assignment are 409.
//   - POST /internal/automations/run: runs one automation pass. Requires the
//     `X-Cron-Secret` header and responds with the run summary.
//   - GET /healthz, GET /metrics: liveness with a storage ping, Prometheus.
//
// Studio routes read the tenant from the `X-Studio-ID` header, which an
// upstream authentication layer is expected to set.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
