package gpio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/logic"
)

func TestFakeButtonPressed(t *testing.T) {
	f := NewFakeButton(false, true, false)

	for i, want := range []bool{false, true, false, false} {
		got, err := f.Pressed()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("read %d: got %v, want %v", i, got, want)
		}
	}
	if f.Reads != 4 {
		t.Errorf("Reads: got %d, want 4", f.Reads)
	}
}

func TestFakeButtonNoSamples(t *testing.T) {
	f := NewFakeButton()

	if _, err := f.Pressed(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeButtonError(t *testing.T) {
	f := NewFakeButton(true)
	f.ReadError = errors.New("simulated error")

	_, err := f.Pressed()
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeButtonClose(t *testing.T) {
	f := NewFakeButton(true)
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeLEDsRecordsState(t *testing.T) {
	f := NewFakeLEDs()

	f.Set(logic.ColorRed, true)
	f.Set(logic.ColorGreen, true)
	f.Set(logic.ColorRed, false)

	if f.IsOn(logic.ColorRed) {
		t.Error("red should be off")
	}
	if !f.IsOn(logic.ColorGreen) {
		t.Error("green should be on")
	}
	lit := f.Lit()
	if len(lit) != 1 || lit[0] != logic.ColorGreen {
		t.Errorf("Lit: got %v, want [GREEN]", lit)
	}
	if n := len(f.History()); n != 3 {
		t.Errorf("History: got %d entries, want 3", n)
	}
}

func TestFakeLEDsSetError(t *testing.T) {
	f := NewFakeLEDs()
	f.SetError = errors.New("bus fault")

	if err := f.Set(logic.ColorRed, true); err == nil {
		t.Error("expected error")
	}
	if f.IsOn(logic.ColorRed) {
		t.Error("failed Set should not change state")
	}
}

func TestSimButtonPressesOnce(t *testing.T) {
	b := NewSimButton()

	if p, _ := b.Pressed(); p {
		t.Error("should start released")
	}
	b.Press()
	if p, _ := b.Pressed(); !p {
		t.Error("expected pressed after Press()")
	}
	if p, _ := b.Pressed(); p {
		t.Error("press should be consumed by one read")
	}
}

func TestSimButtonQueuedPressesAreSeparated(t *testing.T) {
	b := NewSimButton()
	b.Press()
	b.Press()

	var got []bool
	for i := 0; i < 5; i++ {
		p, _ := b.Pressed()
		got = append(got, p)
	}
	want := []bool{true, false, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reads: got %v, want %v", got, want)
		}
	}
}

func TestSimLEDs(t *testing.T) {
	l := NewSimLEDs(zap.NewNop())
	if err := l.Set(logic.ColorYellow, true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !l.state[logic.ColorYellow] {
		t.Error("expected yellow recorded on")
	}
}

func TestFileButton(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sbtn")
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := NewFileButton(path)
	if err != nil {
		t.Fatalf("NewFileButton: %v", err)
	}
	if p, err := b.Pressed(); err != nil || p {
		t.Errorf("got (%v, %v), want (false, nil)", p, err)
	}

	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p, err := b.Pressed(); err != nil || !p {
		t.Errorf("got (%v, %v), want (true, nil)", p, err)
	}
}

func TestFileButtonMissingDevice(t *testing.T) {
	if _, err := NewFileButton(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing device")
	}
}
