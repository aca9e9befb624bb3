package speech

// JobStatus is the closed set of provider job states. The provider reports
// status as a free-form string; it is mapped here, at the boundary, so the
// rest of the system never handles a raw status value.
type JobStatus string

const (
	JobNotStarted JobStatus = "NotStarted"
	JobRunning    JobStatus = "Running"
	JobSucceeded  JobStatus = "Succeeded"
	JobFailed     JobStatus = "Failed"
	JobUnknown    JobStatus = "Unknown"
)

// ParseJobStatus maps a raw provider status string into the closed enum.
// Anything unrecognized is JobUnknown, never a silent default.
func ParseJobStatus(raw string) JobStatus {
	switch raw {
	case "NotStarted":
		return JobNotStarted
	case "Running":
		return JobRunning
	case "Succeeded":
		return JobSucceeded
	case "Failed":
		return JobFailed
	}
	return JobUnknown
}
