// Package auditsink publishes goGuard audit events to RabbitMQ so downstream
// services (SIEM forwarders, notification workers) can consume them.
package auditsink
