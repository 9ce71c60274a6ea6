package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrServiceKind  = attribute.Key("harness.service.kind")
	AttrNodeIndex    = attribute.Key("harness.node.index")
	AttrNodePort     = attribute.Key("harness.node.port")
	AttrLookupStatus = attribute.Key("offsets.lookup.status")
	AttrTaskName     = attribute.Key("task.name")
	AttrTopic        = attribute.Key("task.topic")
)

// Lookup status values
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupOmitted = "omitted"
	LookupFailed  = "failed"
)
