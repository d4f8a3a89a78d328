package relay

import "time"

const (
	// KeyPrefix is the folder every snapshot is written under.
	KeyPrefix = "timesheets/"

	keyTimeLayout = "2006-01-02-150405"
)

// ObjectKey names the snapshot taken at t. Resolution is one second, so two
// invocations within the same second produce the same key and the later
// upload overwrites the earlier one.
func ObjectKey(t time.Time) string {
	return KeyPrefix + "data_" + t.Format(keyTimeLayout) + ".json"
}
