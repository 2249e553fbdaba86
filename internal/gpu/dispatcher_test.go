//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/wgpu/hal"
)

// fakeEncoder fails BeginEncoding or EndEncoding on request and counts
// discards.
type fakeEncoder struct {
	beginErr  error
	endErr    error
	discarded int
}

func (f *fakeEncoder) BeginEncoding(string) error { return f.beginErr }

func (f *fakeEncoder) EndEncoding() (hal.CommandBuffer, error) { return nil, f.endErr }

func (f *fakeEncoder) DiscardEncoding() { f.discarded++ }

func TestEncodingDiscardsOnError(t *testing.T) {
	boom := errors.New("device lost")
	tests := []struct {
		name    string
		enc     fakeEncoder
		wantErr bool
	}{
		{"ok", fakeEncoder{}, false},
		{"begin fails", fakeEncoder{beginErr: boom}, true},
		{"end fails", fakeEncoder{endErr: boom}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.enc
			err := beginEncoding(&enc, "test")
			if err == nil {
				_, err = endEncoding(&enc)
			}
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapped %v", err, boom)
			}
			want := 0
			if tt.wantErr {
				want = 1
			}
			if enc.discarded != want {
				t.Errorf("DiscardEncoding called %d times, want %d", enc.discarded, want)
			}
		})
	}
}
