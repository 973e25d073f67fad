package enums

// CaptureStatus tracks whether the authorized funds were captured.
type CaptureStatus string

const (
	CaptureStatusPending  CaptureStatus = "pending"
	CaptureStatusCaptured CaptureStatus = "captured"
)

var captureStatuses = newClosedSet("capture status",
	CaptureStatusPending,
	CaptureStatusCaptured,
)

func (c CaptureStatus) String() string { return string(c) }

func (c CaptureStatus) IsValid() bool { return captureStatuses.has(c) }

func ParseCaptureStatus(value string) (CaptureStatus, error) {
	return captureStatuses.parse(value)
}
