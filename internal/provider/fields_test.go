package provider

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFieldScansCandidatesInOrder(t *testing.T) {
	obj := Object{"sip_trunk_id": "T2", "id": "T3"}

	v, ok := Field(obj, "sipTrunkId", "sip_trunk_id", "id")
	if !ok || v != "T2" {
		t.Errorf("Field = %v, %v; want T2, true", v, ok)
	}

	// First candidate wins when present.
	obj["sipTrunkId"] = "T1"
	v, _ = Field(obj, "sipTrunkId", "sip_trunk_id", "id")
	if v != "T1" {
		t.Errorf("Field = %v, want T1", v)
	}
}

func TestFieldSkipsNull(t *testing.T) {
	obj := Object{"sipTrunkId": nil, "sip_trunk_id": "T2"}
	v, ok := Field(obj, "sipTrunkId", "sip_trunk_id")
	if !ok || v != "T2" {
		t.Errorf("Field = %v, %v; want T2, true", v, ok)
	}

	if _, ok := Field(nil, "anything"); ok {
		t.Error("Field on nil object should report not found")
	}
	if _, ok := Field(Object{}, "missing"); ok {
		t.Error("Field on empty object should report not found")
	}
}

func TestStringField(t *testing.T) {
	obj := Object{"name": "", "Name": 42, "trunk_name": "main"}
	if got := StringField(obj, "name", "Name", "trunk_name"); got != "main" {
		t.Errorf("StringField = %q, want main", got)
	}
	if got := StringField(obj, "missing"); got != "" {
		t.Errorf("StringField = %q, want empty", got)
	}
}

func TestStringsFieldHandlesJSONDecodedArrays(t *testing.T) {
	// encoding/json decodes arrays as []any.
	var obj Object
	if err := json.Unmarshal([]byte(`{"inbound_numbers":["+15551230000","+15551230001",7]}`), &obj); err != nil {
		t.Fatal(err)
	}

	got := StringsField(obj, "inboundNumbers", "inbound_numbers")
	want := []string{"+15551230000", "+15551230001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StringsField = %v, want %v", got, want)
	}

	if StringsField(obj, "missing") != nil {
		t.Error("expected nil for missing key")
	}
}

func TestStringsFieldNativeSlice(t *testing.T) {
	obj := Object{"trunkIds": []string{"T1"}}
	if got := StringsField(obj, "trunkIds", "trunk_ids"); !reflect.DeepEqual(got, []string{"T1"}) {
		t.Errorf("StringsField = %v, want [T1]", got)
	}
}

func TestObjectsField(t *testing.T) {
	var obj Object
	if err := json.Unmarshal([]byte(`{"items":[{"id":"R1"},"junk",{"id":"R2"}]}`), &obj); err != nil {
		t.Fatal(err)
	}

	items := ObjectsField(obj, "items", "rules")
	if len(items) != 2 {
		t.Fatalf("ObjectsField returned %d items, want 2", len(items))
	}
	if StringField(items[1], "id") != "R2" {
		t.Errorf("second item id = %q, want R2", StringField(items[1], "id"))
	}
}
