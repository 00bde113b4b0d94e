package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReporter_FansOutToSubscribers(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	a, cancelA := pr.Subscribe()
	defer cancelA()
	b, cancelB := pr.Subscribe()
	defer cancelB()

	want := ProgressEvent{SessionID: "s1", Stage: StageBrief, Section: "brief", Status: ProgressWorking}
	pr.Emit(want)

	for _, ch := range []<-chan ProgressEvent{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for progress event")
		}
	}
}

func TestProgressReporter_EmitWhenFullDoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()
	_, cancel := pr.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			pr.Emit(ProgressEvent{Stage: StageSupervise, Section: "topic", Status: ProgressWorking})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

func TestProgressReporter_UnsubscribeClosesChannel(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	ch, cancel := pr.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	pr.Emit(ProgressEvent{Status: ProgressWorking})
}

func TestProgressReporter_Close(t *testing.T) {
	pr := NewProgressReporter()
	ch, cancel := pr.Subscribe()

	pr.Close()
	pr.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := pr.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		ev   ProgressEvent
		want string
	}{
		{ProgressEvent{Section: "battery recycling", Status: ProgressPending}, "  ○ battery recycling (pending)"},
		{ProgressEvent{Section: "battery recycling", Status: ProgressWorking}, "  ● battery recycling..."},
		{ProgressEvent{Section: "battery recycling", Status: ProgressComplete}, "  ✓ battery recycling complete"},
		{ProgressEvent{Section: "battery recycling", Status: ProgressFailed, Message: "timeout"}, "  ✗ battery recycling failed: timeout"},
		{ProgressEvent{Section: "clarify", Status: ProgressWaiting, Message: "Which region?"}, "  ? clarify: Which region?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatProgress(tt.ev))
	}
	require.Equal(t, "[abc] Stage 2: supervise", FormatStageHeader("abc", StageSupervise))
}
