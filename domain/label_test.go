package domain

import "testing"

func TestAddLabel(t *testing.T) {
	p := NewProfile("u@example.com", 1)
	if err := p.AddLabel("home"); err != nil {
		t.Fatalf("add label: %v", err)
	}
	if len(p.Labels) != 1 || p.Labels[0].Title != "home" || p.Labels[0].Icon != DefaultLabelIcon {
		t.Fatalf("unexpected registry: %#v", p.Labels)
	}
}

func TestAddLabelRejectsDuplicateTitle(t *testing.T) {
	p := NewProfile("", 1)
	if err := p.AddLabel("home"); err != nil {
		t.Fatalf("add label: %v", err)
	}
	if err := p.AddLabel("home"); err != ErrDuplicateLabel {
		t.Fatalf("expected ErrDuplicateLabel, got %v", err)
	}
	if len(p.Labels) != 1 {
		t.Fatalf("registry grew on duplicate: %#v", p.Labels)
	}
}

func TestRemoveLabel(t *testing.T) {
	p := NewProfile("", 1)
	_ = p.AddLabel("home")
	_ = p.AddLabel("work")
	if !p.RemoveLabel("home") {
		t.Fatal("expected removal")
	}
	if p.HasLabelTitle("home") {
		t.Fatal("label still present after removal")
	}
	if !p.HasLabelTitle("work") {
		t.Fatal("unrelated label removed")
	}
	if p.RemoveLabel("home") {
		t.Fatal("second removal should report absence")
	}
}

func TestLabelsRoundTripThroughColumn(t *testing.T) {
	p := NewProfile("", 1)
	_ = p.AddLabel("home")
	_ = p.AddLabel("errands")

	raw, err := EncodeLabels(p.Labels)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeLabels(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Title != "home" || decoded[1].Title != "errands" {
		t.Fatalf("unexpected decoded registry: %#v", decoded)
	}

	empty, err := DecodeLabels("")
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("empty column must decode to empty registry, got %#v", empty)
	}
}
