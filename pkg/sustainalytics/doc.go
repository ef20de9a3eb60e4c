// Package sustainalytics defines the wire contract of the Sustainalytics
// scoring API: endpoint paths, request/response shapes, and the error
// taxonomy shared by all layers of the row engine.
//
// Two resources are exposed as tables:
//
//   - DataServices: GET /v2/DataService, a paginated entity-scoring feed
//     driven by a Skip/Take cursor (Take is capped at 10 by the API).
//   - FieldMappingDefinitions: GET /v2/FieldMappingDefinitions, a four-level
//     schema catalog (product -> package -> field cluster -> field) returned
//     in a single response.
//
// Authentication is a bearer token obtained from POST /auth/token with
// form-encoded client credentials. The issuer reports expires_in but the
// engine treats a 401/403 on any downstream call as the expiry signal.
package sustainalytics
