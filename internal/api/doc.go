// Package api implements the HTTP surface of parley.
//
// Endpoints:
//   - POST   /api/chat           - submit a user turn, reply streamed as SSE frames
//   - GET    /api/chat           - stream bookkeeping for a chat (visibility-gated)
//   - DELETE /api/chat           - delete a chat and everything under it
//   - PATCH  /api/chat/visibility - flip a chat between public and private
//   - DELETE /api/chat/messages  - delete turns after a timestamp (edit and regenerate)
//   - GET    /api/history        - caller's chats, newest first, cursor pagination
//   - GET    /api/vote           - votes for a chat
//   - PATCH  /api/vote           - upsert a vote for a message
//   - GET    /api/document       - all versions of a document
//   - POST   /api/document       - save a new document version
//   - DELETE /api/document       - prune document versions after a timestamp
//   - GET    /api/suggestions    - suggestions for a document
//   - POST   /api/files/upload   - upload an attachment to the blob store
//   - GET    /api/files/{fileId} - fetch an uploaded attachment (no auth)
//   - GET    /health             - liveness probe, outside the middleware stack
//
// Failures detected before the SSE stream opens surface as JSON errors
// with a status from the internal/apperr taxonomy. Once the stream is
// open, failures degrade to a terminal error frame (see internal/stream
// and internal/orchestrator).
package api
