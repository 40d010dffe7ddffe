package mutex

import (
	"testing"
	"time"

	"github.com/jathurchan/ralock/testutil"
)

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()
	testutil.AssertEqual(t, DefaultOptions(), got)

	custom := Options{PollInterval: time.Millisecond}.WithDefaults()
	testutil.AssertEqual(t, time.Millisecond, custom.PollInterval)
	testutil.AssertEqual(t, DefaultResponseTimeout, custom.ResponseTimeout)
	testutil.AssertEqual(t, DefaultSendTimeout, custom.SendTimeout)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"negative poll interval", Options{PollInterval: -1, ResponseTimeout: time.Second, SendTimeout: time.Second}, true},
		{"zero response timeout", Options{PollInterval: time.Millisecond, SendTimeout: time.Second}, true},
		{"zero send timeout", Options{PollInterval: time.Millisecond, ResponseTimeout: time.Second}, true},
		{"poll exceeds timeout", Options{PollInterval: 2 * time.Second, ResponseTimeout: time.Second, SendTimeout: time.Second}, true},
		{"poll equals timeout", Options{PollInterval: time.Second, ResponseTimeout: time.Second, SendTimeout: time.Second}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, ErrInvalidOptions)
			} else {
				testutil.AssertNoError(t, err)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	testutil.AssertEqual(t, 500*time.Millisecond, opts.PollInterval)
	testutil.AssertEqual(t, 5*time.Second, opts.ResponseTimeout)
	testutil.AssertEqual(t, 2*time.Second, opts.SendTimeout)
}
