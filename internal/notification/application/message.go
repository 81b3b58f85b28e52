package application

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/events"
)

const fairName = "Colombo International Book Fair"

var bodyTmpl = template.Must(template.New("body").Parse(`<html><body>
<p>Dear exhibitor,</p>
<p>{{.Lead}}</p>
<table>
<tr><td>Reservation ID</td><td>{{.ReservationID}}</td></tr>
<tr><td>Stall</td><td>{{.StallID}}</td></tr>
<tr><td>Amount</td><td>{{printf "%.2f" .Amount}}</td></tr>
<tr><td>Status</td><td>{{.Status}}</td></tr>
<tr><td>Reserved on</td><td>{{.ReserveDate}}</td></tr>
{{- if .ConfirmDate}}
<tr><td>Confirmed on</td><td>{{.ConfirmDate}}</td></tr>
{{- end}}
</table>
{{- if .WithPass}}
<p>Your QR pass is attached. Please present it at the entrance.</p>
{{- end}}
<p>{{.Fair}}</p>
</body></html>`))

type message struct {
	Subject string
	Body    string
}

type bodyData struct {
	Lead          string
	ReservationID string
	StallID       string
	Amount        float64
	Status        string
	ReserveDate   string
	ConfirmDate   string
	WithPass      bool
	Fair          string
}

// wantsPass reports whether mail for kind carries a QR pass.
func wantsPass(kind events.Kind) bool {
	return kind != events.ReservationCancelledKind
}

// compose builds subject and body for a reservation event. The output depends
// only on its inputs so a redelivered event renders the same mail.
func compose(r events.Reservation, kind events.Kind, withPass bool) (message, error) {
	var subject, lead string
	switch kind {
	case events.ReservationCreatedKind:
		subject = "CIBF stall reservation received"
		lead = "We have received your stall reservation. It is pending confirmation."
	case events.ReservationConfirmedKind:
		subject = "CIBF stall reservation confirmed"
		lead = "Your stall reservation is confirmed. We look forward to seeing you at the fair."
	case events.ReservationCancelledKind:
		subject = "CIBF stall reservation cancelled"
		lead = "Your stall reservation has been cancelled and the stall released."
	default:
		subject = "CIBF stall reservation update"
		lead = "There is an update to your stall reservation."
	}

	data := bodyData{
		Lead:          lead,
		ReservationID: r.ReservationID,
		StallID:       r.StallID,
		Amount:        r.Amount,
		Status:        r.Status,
		ReserveDate:   r.ReserveDate.UTC().Format("2006-01-02 15:04 MST"),
		WithPass:      withPass,
		Fair:          fairName,
	}
	if r.ReserveConfirmDate != nil {
		data.ConfirmDate = r.ReserveConfirmDate.UTC().Format("2006-01-02 15:04 MST")
	}

	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, data); err != nil {
		return message{}, fmt.Errorf("render body: %w", err)
	}
	return message{Subject: subject, Body: buf.String()}, nil
}
