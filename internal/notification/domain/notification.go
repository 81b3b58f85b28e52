package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

// Outcome is how a notification ended up being handled.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDegraded Outcome = "degraded"
	// OutcomeUnknown is recorded when a send was abandoned mid-flight and the
	// mail may or may not have gone out.
	OutcomeUnknown Outcome = "unknown"
)

// ErrDeliveryUnknown marks a send whose result was never observed. It must not
// be retried.
var ErrDeliveryUnknown = errors.New("delivery outcome unknown")

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeSent, OutcomeSkipped, OutcomeDegraded, OutcomeUnknown:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q: %w", s, apperr.ErrInvalid)
}

const QRAttachmentName = "QR-PASS.png"

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Receipt records a handled notification. Key is the event's idempotency key.
type Receipt struct {
	Key           string
	ReservationID string
	Event         string
	Recipient     string
	Subject       string
	Attachment    string
	QRSeed        string
	Outcome       Outcome
	SentAt        time.Time
}
