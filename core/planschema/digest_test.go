package planschema

import (
	"regexp"
	"testing"
)

func TestDigestStableAcrossRevalidation(t *testing.T) {
	first := Validate(validPlanText)
	second := Validate(validPlanText)
	if !first.OK || !second.OK {
		t.Fatalf("expected valid plans: %s / %s", first.Error, second.Error)
	}
	digestA, err := Digest(first.Plan)
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	digestB, err := Digest(second.Plan)
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	if digestA != digestB {
		t.Fatalf("expected stable digest, got %s vs %s", digestA, digestB)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(digestA) {
		t.Fatalf("unexpected digest shape: %s", digestA)
	}
}

func TestDigestChangesWithContent(t *testing.T) {
	base := Validate(validPlanText)
	changed := Validate(validPlanText + "- [x] 1.2 Another step\n")
	if !base.OK || !changed.OK {
		t.Fatalf("expected valid plans: %s / %s", base.Error, changed.Error)
	}
	digestBase, _ := Digest(base.Plan)
	digestChanged, _ := Digest(changed.Plan)
	if digestBase == digestChanged {
		t.Fatal("expected digest to change with plan content")
	}
}

func TestDigestNilPlan(t *testing.T) {
	if _, err := Digest(nil); err == nil {
		t.Fatal("expected error for nil plan")
	}
}
