package redis

// Key prefixes for primary entity storage.
const (
	prefixEvent      = "hookline:evt:"
	prefixSubscriber = "hookline:sub:" // + projectID + ":" + subscriberID
	prefixAttempt    = "hookline:att:"
	prefixJob        = "hookline:job:"
	prefixDLQ        = "hookline:dlq:"
)

// Key prefixes for sorted set indexes.
const (
	zEventAll     = "hookline:z:evt:all"
	zEventProject = "hookline:z:evt:project:" // + project ID
	zSubProject   = "hookline:z:sub:project:" // + project ID
	zAttemptEvent = "hookline:z:att:evt:"     // + event ID
	zJobPending   = "hookline:z:job:pending"
	zJobEvent     = "hookline:z:job:evt:" // + event ID
	zDLQAll       = "hookline:z:dlq:all"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// subscriberKey returns the primary key for a subscriber, scoped by project.
func subscriberKey(projectID, subID string) string {
	return prefixSubscriber + projectID + ":" + subID
}
