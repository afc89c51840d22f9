package action

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"read", KindRead},
		{"View", KindRead},
		{"cat", KindRead},
		{" edit ", KindEdit},
		{"patch", KindEdit},
		{"create", KindWrite},
		{"rm", KindDelete},
		{"bash", KindCommand},
		{"exec", KindCommand},
		{"websearch", KindResearch},
		{"api-probe", KindProbe},
		{"test-run", KindVerify},
		{"git", KindVCS},
		{"test-authoring", KindTest},
		{"teleport", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestKindClass(t *testing.T) {
	tests := []struct {
		kind Kind
		want Class
	}{
		{KindRead, ClassRead},
		{KindResearch, ClassRead},
		{KindProbe, ClassRead},
		{KindVerify, ClassRead},
		{KindVCS, ClassRead},
		{KindTest, ClassRead},
		{KindWrite, ClassMutate},
		{KindEdit, ClassMutate},
		{KindDelete, ClassDelete},
		{KindCommand, ClassCommand},
		{KindUnknown, ClassUnknown},
	}
	for _, tt := range tests {
		if got := tt.kind.Class(); got != tt.want {
			t.Errorf("%s.Class() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestKindEvidence(t *testing.T) {
	for _, k := range []Kind{KindRead, KindResearch, KindProbe, KindVerify, KindVCS, KindTest} {
		if !k.Evidence() {
			t.Errorf("%s should be evidence-producing", k)
		}
	}
	for _, k := range []Kind{KindWrite, KindEdit, KindDelete, KindCommand, KindUnknown} {
		if k.Evidence() {
			t.Errorf("%s should not be evidence-producing", k)
		}
	}
}
