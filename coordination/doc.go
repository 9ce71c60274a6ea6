// Package coordination runs an embedded single-node coordination service.
//
// The service is a small HTTP registry: nodes of other services register
// their kind, id and address on start and deregister on close, and peers
// discover each other by listing a kind. Registration order is kept, so a
// listing reflects start order.
//
//	POST   /nodes               register {"id", "kind", "addr"}
//	DELETE /nodes/{kind}/{id}   deregister
//	GET    /nodes?kind=broker   list, in registration order
//	GET    /health              200 once serving
package coordination
