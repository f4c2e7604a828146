// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IndexRebuildTask represents an asynchronous request to rebuild one user's
// knowledge base index from the full accumulated document set.
type IndexRebuildTask struct {
	UserID uint `json:"user_id"`
}
