// Package messaging publishes and consumes events over a broker without tying
// business code to one.
//
// Drivers: NATS core subjects with optional queue groups, Kafka topics with
// consumer groups and commit-after-handle, and an in-process broker for local
// runs and tests. Delivery is at least once on Kafka and at most once on NATS
// core and the in-process broker.
package messaging
