// Package prometheus renders goGuard counters and the login latency histogram
// in Prometheus text exposition format.
//
// Counter names are goguard_*_total; the histogram is
// goguard_login_latency_seconds. Callers mount [Exporter.Handler]; nothing is
// registered globally.
package prometheus
