// Package worker runs a pool of source-task workers against a broker
// cluster.
//
// Every worker keeps its internal state in three topics on the brokers,
// named after the pool's group id: <group>-offsets, <group>-configs and
// <group>-status. Offsets written by tasks on any node of the pool are
// visible to every other node through the offsets topic.
package worker
