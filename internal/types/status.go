package types

// Status is a type for the lifecycle status of a stored resource (e.g. subscription,
// usage row) in the database. This is used to track soft deletion and to determine
// whether a row should be included in queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
