// Package broker runs an embedded Kafka-protocol broker cluster for tests.
//
// Nodes are kfake brokers. The first node of a cluster creates the
// embedded cluster and every later node joins it, so all nodes serve the
// same topics and metadata. Each node registers with the coordination
// service it was started against and deregisters when it stops.
package broker
