// Package service holds the lifecycle machinery shared by the embedded
// coordination, broker and worker services.
//
// A Group owns one or more nodes of a single kind. Nodes start one at a
// time in port order and the group only becomes visible to the caller once
// every node is ready; if any node fails, the nodes already started by the
// same call are closed in reverse order before the error is returned.
// Close stops nodes in reverse start order, keeps going when a node fails
// to stop and reports the aggregated error afterwards. Closing twice is a
// no-op.
//
// Groups do not track their dependents. A group must only be closed after
// every group started on top of it has been closed.
package service
