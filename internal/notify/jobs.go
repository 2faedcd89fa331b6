package notify

// InitJob is the stage-1 payload. The wire shape is fixed: {"eventId": n}.
type InitJob struct {
	EventID int64 `json:"eventId"`
}

// DeliveryJob is the stage-2 payload, same wire shape as InitJob.
type DeliveryJob struct {
	EventID int64 `json:"eventId"`
}
