package signaling

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		token   string
		want    Role
		wantErr bool
	}{
		{"sender", RoleSender, false},
		{"receiver", RoleReceiver, false},
		{"Sender", "", true},
		{"", "", true},
		{`{"type":"offer"}`, "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.token)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownRole) {
				t.Errorf("ParseRole(%q) err = %v, want ErrUnknownRole", tt.token, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseRole(%q) = %q, %v", tt.token, got, err)
		}
	}
}

func TestRoleOpposite(t *testing.T) {
	if RoleSender.Opposite() != RoleReceiver || RoleReceiver.Opposite() != RoleSender {
		t.Fatal("Opposite must swap sender and receiver")
	}
}

func TestDecodeDescriptor(t *testing.T) {
	text, err := Descriptor{Type: DescriptorOffer, SDP: "v=0\r\n"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	d, err := DecodeDescriptor(text, DescriptorOffer)
	if err != nil {
		t.Fatalf("DecodeDescriptor: %v", err)
	}
	if d.SDP != "v=0\r\n" {
		t.Errorf("SDP = %q", d.SDP)
	}

	bad := []struct {
		name, text string
	}{
		{"wrong kind", text},
		{"not json", "receiver"},
		{"empty sdp", `{"type":"answer","sdp":""}`},
		{"broker error", string(EncodeError("invalid role"))},
	}
	for _, tt := range bad {
		if _, err := DecodeDescriptor(tt.text, DescriptorAnswer); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("%s: err = %v, want ErrInvalidDescriptor", tt.name, err)
		}
	}
}

func TestDecodeError(t *testing.T) {
	reason, ok := DecodeError(string(EncodeError("invalid role")))
	if !ok || reason != "invalid role" {
		t.Errorf("DecodeError = %q, %v", reason, ok)
	}
	if _, ok := DecodeError(`{"type":"offer","sdp":"x"}`); ok {
		t.Error("offer must not decode as an error")
	}
}
