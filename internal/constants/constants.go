package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultDispatchTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixEventID = "eventid:"
)

const (
	DefaultInputTopic = "domain_events"
	DefaultDLQTopic   = "domain_events_dlq"
)

const (
	DefaultMongoDBName        = "chronicle"
	DefaultEventLogCollection = "event_log"
	DefaultSinkCollection     = "routed_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

const (
	DefaultEventIDTTLSeconds = 86400
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
	FallbackError = "error"
)

// Terminal routing outcomes that are not failures.
const (
	ReasonFilteredPreRouting = "filtered_by_pre_routing"
	ReasonNoApplicableRoutes = "no_applicable_routes"
)

const (
	DestinationWebhook  = "webhook"
	DestinationQueue    = "queue"
	DestinationDatabase = "database"
	DestinationFile     = "file"
	DestinationAPI      = "api"
)
