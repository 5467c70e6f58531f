package dashboard

import (
	"encoding/json"
	"testing"
)

func TestCustomerRefUnmarshalBareID(t *testing.T) {
	var ref CustomerRef
	if err := json.Unmarshal([]byte(`"cust-42"`), &ref); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ref.Resolved {
		t.Fatal("bare id must decode as unresolved")
	}
	if ref.ID != "cust-42" {
		t.Fatalf("got id %q", ref.ID)
	}
	if ref.Record != nil {
		t.Fatal("unresolved ref must not carry a record")
	}
}

func TestCustomerRefUnmarshalRecord(t *testing.T) {
	raw := `{"id":"cust-42","name":"Ana","phone":"555-0101","email":"ana@example.com"}`
	var ref CustomerRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !ref.Resolved {
		t.Fatal("object must decode as resolved")
	}
	if ref.ID != "cust-42" || ref.Record == nil || ref.Record.Name != "Ana" {
		t.Fatalf("got %+v", ref)
	}
}

func TestCustomerRefUnmarshalGarbage(t *testing.T) {
	var ref CustomerRef
	if err := json.Unmarshal([]byte(`42`), &ref); err == nil {
		t.Fatal("expected error for non-string non-object value")
	}
}

func TestCustomerRefMarshalRoundTrip(t *testing.T) {
	unresolved := CustomerRef{ID: "cust-1"}
	raw, err := json.Marshal(unresolved)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"cust-1"` {
		t.Fatalf("unresolved ref should marshal as bare id, got %s", raw)
	}

	resolved := CustomerRef{
		ID:       "cust-1",
		Record:   &Customer{ID: "cust-1", Name: "Ana"},
		Resolved: true,
	}
	raw, err = json.Marshal(resolved)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back CustomerRef
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Resolved || back.Record.Name != "Ana" {
		t.Fatalf("round trip lost record: %+v", back)
	}
}

func TestRestaurantRefBothShapes(t *testing.T) {
	var ref RestaurantRef
	if err := json.Unmarshal([]byte(`"rest-7"`), &ref); err != nil {
		t.Fatalf("unmarshal id: %v", err)
	}
	if ref.Resolved || ref.ID != "rest-7" {
		t.Fatalf("got %+v", ref)
	}

	if err := json.Unmarshal([]byte(`{"id":"rest-7","name":"Trattoria"}`), &ref); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if !ref.Resolved || ref.Record == nil || ref.Record.Name != "Trattoria" {
		t.Fatalf("got %+v", ref)
	}
}

func TestOrderDecodesCustomerRef(t *testing.T) {
	raw := `{"id":"o1","restaurant_id":"r1","customer":"cust-9","status":"pending","items":[]}`
	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if o.Customer.Resolved || o.Customer.ID != "cust-9" {
		t.Fatalf("got customer ref %+v", o.Customer)
	}
}
