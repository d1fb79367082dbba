package observability

// MetricsNamespace prefixes every Prometheus collector the binary registers.
const MetricsNamespace = "salesbot"
