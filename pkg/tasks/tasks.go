// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentIngestTask represents the data structure for a knowledge-base ingest job.
type DocumentIngestTask struct {
	FileMD5  string `json:"file_md5"`
	FileName string `json:"file_name"`
}
