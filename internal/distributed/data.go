package distributed

import (
	"encoding/json"
	"fmt"
	"time"
)

/*
Distributed mode wire format

Tasks and results travel as versioned JSON objects over two logical topics.
Delivery is at-least-once; the coordinator's visited set provides
idempotence, so workers never need to deduplicate.
*/

// SchemaVersion is bumped on any incompatible message change.
const SchemaVersion = 1

// TaskMessage is one frontier entry published to the tasks topic.
type TaskMessage struct {
	URL            string    `json:"url"`
	Depth          int       `json:"depth"`
	DiscoveredFrom string    `json:"discoveredFrom,omitempty"`
	PriorityScore  float64   `json:"priorityScore,omitempty"`
	InsertedAt     time.Time `json:"insertedAt"`
	SchemaVersion  int       `json:"schemaVersion"`
}

// ResultMessage is one processed page published to the results topic.
type ResultMessage struct {
	URL            string    `json:"url"`
	FinalURL       string    `json:"finalUrl,omitempty"`
	HTTPStatus     int       `json:"httpStatus,omitempty"`
	ContentHashHex string    `json:"contentHashHex,omitempty"`
	ContentType    string    `json:"contentType,omitempty"`
	FetchedAt      time.Time `json:"fetchedAt"`
	Depth          int       `json:"depth"`
	Discovered     []string  `json:"discovered,omitempty"`
	Error          string    `json:"error,omitempty"`
	SchemaVersion  int       `json:"schemaVersion"`
}

// EncodeTask serializes a task, stamping the schema version.
func EncodeTask(task TaskMessage) ([]byte, error) {
	task.SchemaVersion = SchemaVersion
	return json.Marshal(task)
}

// DecodeTask deserializes and version-checks a task.
func DecodeTask(raw []byte) (TaskMessage, error) {
	var task TaskMessage
	if err := json.Unmarshal(raw, &task); err != nil {
		return TaskMessage{}, fmt.Errorf("decode task: %w", err)
	}
	if task.SchemaVersion != SchemaVersion {
		return TaskMessage{}, fmt.Errorf("task schema version %d, want %d", task.SchemaVersion, SchemaVersion)
	}
	if task.URL == "" {
		return TaskMessage{}, fmt.Errorf("task without url")
	}
	return task, nil
}

// EncodeResult serializes a result, stamping the schema version.
func EncodeResult(result ResultMessage) ([]byte, error) {
	result.SchemaVersion = SchemaVersion
	return json.Marshal(result)
}

// DecodeResult deserializes and version-checks a result.
func DecodeResult(raw []byte) (ResultMessage, error) {
	var result ResultMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return ResultMessage{}, fmt.Errorf("decode result: %w", err)
	}
	if result.SchemaVersion != SchemaVersion {
		return ResultMessage{}, fmt.Errorf("result schema version %d, want %d", result.SchemaVersion, SchemaVersion)
	}
	return result, nil
}
