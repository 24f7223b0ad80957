package model

import (
	"testing"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

func TestNewGroup_RejectsShortInterval(t *testing.T) {
	_, err := NewGroup("g1", 50*time.Millisecond)
	if !gwerrors.Is(err, gwerrors.GroupParameterInvalid) {
		t.Fatalf("expected GROUP_PARAMETER_INVALID, got %v", err)
	}
}

func TestNewGroup_RejectsLongName(t *testing.T) {
	longName := make([]byte, MaxGroupNameLen+1)
	for i := range longName {
		longName[i] = 'a'
	}
	_, err := NewGroup(string(longName), 500*time.Millisecond)
	if !gwerrors.Is(err, gwerrors.GroupNameTooLong) {
		t.Fatalf("expected GROUP_NAME_TOO_LONG, got %v", err)
	}
}

func TestGroup_AddTag_DuplicateRejected(t *testing.T) {
	g, err := NewGroup("g1", 500*time.Millisecond)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	tag := &Tag{Name: "t1", Type: TypeUint16, Attribute: AttrReadable | AttrWritable}
	if err := g.AddTag(tag); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if err := g.AddTag(tag); !gwerrors.Is(err, gwerrors.TagNameConflict) {
		t.Fatalf("expected TAG_NAME_CONFLICT, got %v", err)
	}
}

func TestGroup_ChangeTimestampStrictlyIncreases(t *testing.T) {
	g, _ := NewGroup("g1", 500*time.Millisecond)
	t0 := g.ChangedAt()

	time.Sleep(time.Millisecond)
	if err := g.AddTag(&Tag{Name: "t1", Type: TypeUint16}); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	t1 := g.ChangedAt()
	if t1 <= t0 {
		t.Fatalf("change timestamp did not strictly increase: %d -> %d", t0, t1)
	}

	time.Sleep(time.Millisecond)
	if err := g.DeleteTag("t1"); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	t2 := g.ChangedAt()
	if t2 <= t1 {
		t.Fatalf("change timestamp did not strictly increase after delete: %d -> %d", t1, t2)
	}
}

func TestGroup_StructuralRoundTrip(t *testing.T) {
	g, _ := NewGroup("g1", 500*time.Millisecond)

	if err := g.AddTag(&Tag{Name: "t1", Type: TypeUint16, Attribute: AttrReadable}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddTag(&Tag{Name: "t2", Type: TypeUint16, Attribute: AttrReadable}); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateTag(&Tag{Name: "t1", Type: TypeFloat32, Attribute: AttrReadable}); err != nil {
		t.Fatal(err)
	}
	if err := g.DeleteTag("t2"); err != nil {
		t.Fatal(err)
	}

	tags := g.Tags()
	if len(tags) != 1 {
		t.Fatalf("Tags() = %d entries, want 1", len(tags))
	}
	if tags[0].Name != "t1" || tags[0].Type != TypeFloat32 {
		t.Fatalf("Tags()[0] = %+v, want t1/Float32", tags[0])
	}
}

func TestGroup_NewGroupHasNoTags(t *testing.T) {
	g, _ := NewGroup("g1", 500*time.Millisecond)
	if g.TagCount() != 0 {
		t.Fatalf("TagCount() = %d, want 0", g.TagCount())
	}
}
