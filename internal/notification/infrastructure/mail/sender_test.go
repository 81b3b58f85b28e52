package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
)

type captureDialer struct {
	msgs  []*gomail.Message
	err   error
	block chan struct{}
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.msgs = append(d.msgs, m...)
	return d.err
}

func newSender(d Dialer, opts ...Option) *Sender {
	return NewSenderWithDialer(slog.New(slog.NewTextHandler(io.Discard, nil)), d, "no-reply@cibf.lk", opts...)
}

func TestSendBuildsMessage(t *testing.T) {
	d := &captureDialer{}
	s := newSender(d)

	err := s.Send(context.Background(), "vendor@example.lk", "hello", "<p>hi</p>", []domain.Attachment{
		{Name: "QR-PASS.png", ContentType: "image/png", Data: []byte("png-bytes")},
	})
	require.NoError(t, err)
	require.Len(t, d.msgs, 1)

	m := d.msgs[0]
	assert.Equal(t, []string{"vendor@example.lk"}, m.GetHeader("To"))
	assert.Equal(t, []string{"hello"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, `filename="QR-PASS.png"`)
}

func TestSendClassifiesErrors(t *testing.T) {
	s := newSender(&captureDialer{err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}})
	err := s.Send(context.Background(), "x@example.lk", "s", "b", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	s = newSender(&captureDialer{err: errors.New("dial tcp: connection refused")})
	err = s.Send(context.Background(), "x@example.lk", "s", "b", nil)
	assert.True(t, apperr.IsRetryable(err))
}

func TestSendAbandonedAfterGraceIsUnknownNotRetryable(t *testing.T) {
	d := &captureDialer{block: make(chan struct{})}
	defer close(d.block)
	s := newSender(d, WithGrace(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, "x@example.lk", "s", "b", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryUnknown)
	assert.False(t, apperr.IsRetryable(err))
}

func TestSendWaitsForSlowDialWithinGrace(t *testing.T) {
	d := &captureDialer{block: make(chan struct{})}
	s := newSender(d, WithGrace(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(d.block)
	}()

	require.NoError(t, s.Send(ctx, "x@example.lk", "s", "b", nil))
	assert.Len(t, d.msgs, 1)
}
