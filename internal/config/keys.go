package config

// Port exposed by the trigger ingestion API
const API_PORT = "api.port"

// Etcd server hostname
const ETCD_ADDRESS = "etcd.address"

// Container manager for execution contexts ("docker" or "podman")
const CONTAINER_MANAGER = "container.manager"

// Podman service socket
const PODMAN_SOCKET = "unix://localhost/run/podman/podman.sock"

// Forces runtime container images to be pulled the first time they are used,
// even if they are locally available (true/false).
const FACTORY_REFRESH_IMAGES = "factory.images.refresh"

// Default max concurrency (execution contexts) per function
const FUNCTION_MAX_CONCURRENCY = "function.maxconcurrency"

// Default per-invocation execution timeout (seconds)
const FUNCTION_TIMEOUT_SEC = "function.timeout"

// Default capacity of the per-function invocation queue
const QUEUE_CAPACITY = "queue.capacity"

// Idle time after which a warm execution context is destroyed (seconds)
const POOL_IDLE_TIMEOUT = "pool.idletimeout"

// Interval between lifecycle supervisor scans (seconds)
const SUPERVISOR_INTERVAL = "supervisor.interval"

// Max attempts for a cold start that fails with a provisioning error
const PROVISION_MAX_RETRIES = "provision.retries"

// Base delay for the provisioning retry backoff (milliseconds)
const PROVISION_RETRY_DELAY_MS = "provision.retrydelay"

// Enables Prometheus metrics
const METRICS_ENABLED = "metrics.enabled"

// Port for the Prometheus metrics endpoint
const METRICS_PORT = "metrics.port"

// Local function registry cache
const CACHE_SIZE = "cache.size"
const CACHE_CLEANUP = "cache.cleanup"
const CACHE_ITEM_EXPIRATION = "cache.expiration"
