package handler

// MessageHandler dispatches one decoded inbound message for a rider.
type MessageHandler interface {
	// HandleMessage decodes the payload and applies it to the rider's
	// session. A non-nil error means the message was a protocol
	// violation or an I/O failure and the connection must be dropped;
	// state violations and semantic rejections are logged here and
	// return nil, leaving the connection open.
	HandleMessage(riderID string, payload []byte) error
}
