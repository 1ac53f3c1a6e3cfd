package domain

// SubmissionState tracks one session's ballot submission lifecycle. It is
// owned exclusively by the submission coordinator and never persisted.
type SubmissionState string

const (
	SubmissionIdle            SubmissionState = "IDLE"
	SubmissionValidating      SubmissionState = "VALIDATING"
	SubmissionSubmitting      SubmissionState = "SUBMITTING"
	SubmissionSucceeded       SubmissionState = "SUCCEEDED"
	SubmissionFailedRetryable SubmissionState = "FAILED_RETRYABLE"
	SubmissionFailedTerminal  SubmissionState = "FAILED_TERMINAL"
)
