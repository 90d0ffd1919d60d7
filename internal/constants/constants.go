package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixResolvedPack = "pack:resolved:"
)

const (
	DefaultPackEventTopic = "rule_pack_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultResolverCacheTTLSeconds = 300
)

// Scope precedence, most specific first.
const (
	ScopeSchool   = "SCHOOL"
	ScopeDistrict = "DISTRICT"
	ScopeState    = "STATE"
)

const (
	PlanTypeIEP = "IEP"
	PlanType504 = "PLAN504"
	PlanTypeBIP = "BIP"
	PlanTypeAll = "ALL"
)

const (
	MeetingStatusScheduled = "SCHEDULED"
	MeetingStatusHeld      = "HELD"
	MeetingStatusClosed    = "CLOSED"
	MeetingStatusCanceled  = "CANCELED"
)

const (
	ConsentObtained = "OBTAINED"
	ConsentPending  = "PENDING"
	ConsentRefused  = "REFUSED"
)

// Meeting type codes carrying the statutory initial-eligibility consent gate.
const (
	MeetingTypeInitial      = "INITIAL"
	MeetingTypeAnnualReview = "ANNUAL_REVIEW"
	MeetingTypeReevaluation = "REEVALUATION"
	MeetingTypeAmendment    = "AMENDMENT"
)
