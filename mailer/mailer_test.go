package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []string
	failFor map[string]error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if err, ok := f.failFor[msg.ToEmail]; ok {
		return err
	}
	f.sent = append(f.sent, msg.ToEmail)
	return nil
}

func TestBulkDispatcher_SecondRecipientFailureDoesNotAbortBatch(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{
		"two@x.com": errors.New("mailbox unavailable"),
	}}

	var sleeps []time.Duration
	d := NewBulkDispatcher(sender, 500*time.Millisecond)
	d.sleep = func(dur time.Duration) { sleeps = append(sleeps, dur) }

	msgs := []Message{
		{ToEmail: "one@x.com", Subject: "s"},
		{ToEmail: "two@x.com", Subject: "s"},
		{ToEmail: "three@x.com", Subject: "s"},
	}

	summary := d.Send(context.Background(), msgs)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	// third recipient was still attempted after the second failed
	assert.Equal(t, []string{"one@x.com", "three@x.com"}, sender.sent)

	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].Sent)
	assert.False(t, summary.Results[1].Sent)
	assert.Equal(t, "mailbox unavailable", summary.Results[1].Error)
	assert.True(t, summary.Results[2].Sent)

	// delay applied between sends, not before the first
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeps)
}

func TestBulkDispatcher_EmptyBatch(t *testing.T) {
	d := NewBulkDispatcher(&fakeSender{}, time.Second)
	summary := d.Send(context.Background(), nil)
	assert.Equal(t, BulkSummary{Total: 0, Results: []RecipientResult{}}, summary)
}

func TestBulkDispatcher_ContextCancelMarksRemainingFailed(t *testing.T) {
	sender := &fakeSender{}
	d := NewBulkDispatcher(sender, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	d.sleep = func(time.Duration) { cancel() }

	msgs := []Message{
		{ToEmail: "one@x.com"},
		{ToEmail: "two@x.com"},
	}
	summary := d.Send(ctx, msgs)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"one@x.com"}, sender.sent)
}
