package hotkeybackend

import (
	"testing"

	"github.com/bindkit/bindkit/model"
)

func TestParseChordModifiersAndKey(t *testing.T) {
	mods, key, err := ParseChord("Ctrl+Alt+T")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}
	want := model.ModCtrl | model.ModAlt
	if mods != want {
		t.Errorf("mods = %v, want %v", mods, want)
	}
	if key != virtualKeys["T"] {
		t.Errorf("key = %v, want T's virtual key", key)
	}
}

func TestParseChordAllModifiers(t *testing.T) {
	mods, _, err := ParseChord("Ctrl+Alt+Shift+Win+F1")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}
	want := model.ModCtrl | model.ModAlt | model.ModShift | model.ModWin
	if mods != want {
		t.Errorf("mods = %v, want %v", mods, want)
	}
}

func TestParseChordUnrecognizedKeyToken(t *testing.T) {
	if _, _, err := ParseChord("Ctrl+Alt+Nonsense"); err == nil {
		t.Fatal("expected error for an unrecognized key token")
	}
}

func TestParseChordNoModifiers(t *testing.T) {
	mods, key, err := ParseChord("F5")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}
	if mods != model.ModNone {
		t.Errorf("mods = %v, want ModNone", mods)
	}
	if key != virtualKeys["F5"] {
		t.Errorf("key = %v, want F5's virtual key", key)
	}
}

func TestSplitChordTrimsEmptySegments(t *testing.T) {
	got := splitChord("Ctrl++Alt+T")
	want := []string{"Ctrl", "Alt", "T"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestVirtualKeyMapCoversLettersDigitsAndFunctionKeys(t *testing.T) {
	for _, letter := range []string{"A", "M", "Z"} {
		if _, ok := virtualKeys[letter]; !ok {
			t.Errorf("missing virtual key for letter %q", letter)
		}
	}
	for _, digit := range []string{"0", "5", "9"} {
		if _, ok := virtualKeys[digit]; !ok {
			t.Errorf("missing virtual key for digit %q", digit)
		}
	}
	if _, ok := virtualKeys["F24"]; !ok {
		t.Error("missing virtual key for F24")
	}
	for _, nav := range []string{"Left", "Right", "Up", "Down", "Escape", "Enter"} {
		if _, ok := virtualKeys[nav]; !ok {
			t.Errorf("missing virtual key for nav key %q", nav)
		}
	}
}

func TestPosixBackendRegisterReportsInternalReason(t *testing.T) {
	b := NewPosixBackend()
	mods, key, err := ParseChord("Ctrl+Alt+T")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}

	err = b.Register("script:demo", mods, key, func() {})
	if err == nil {
		t.Fatal("expected PosixBackend.Register to report an error")
	}
	regErr, ok := err.(*RegistrationError)
	if !ok {
		t.Fatalf("expected *RegistrationError, got %T", err)
	}
	if regErr.Reason != ReasonInternal {
		t.Errorf("Reason = %v, want ReasonInternal", regErr.Reason)
	}
}

func TestPosixBackendUnregisterAndValidateAll(t *testing.T) {
	b := NewPosixBackend()
	b.Register("a", model.ModCtrl, virtualKeys["A"], func() {})
	b.Register("b", model.ModCtrl, virtualKeys["B"], func() {})

	if len(b.ValidateAll()) != 2 {
		t.Fatalf("expected 2 registered ids, got %d", len(b.ValidateAll()))
	}

	if err := b.Unregister("a"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if len(b.ValidateAll()) != 1 {
		t.Fatalf("expected 1 registered id after Unregister, got %d", len(b.ValidateAll()))
	}

	if err := b.UnregisterAll(); err != nil {
		t.Fatalf("UnregisterAll failed: %v", err)
	}
	if len(b.ValidateAll()) != 0 {
		t.Fatalf("expected 0 registered ids after UnregisterAll, got %d", len(b.ValidateAll()))
	}
}
