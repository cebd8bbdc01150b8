package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCleaner_PerEntityReasons(t *testing.T) {
	tests := []struct {
		name       string
		kind       EntityKind
		row        Record
		wantReason string // empty means the row is clean
	}{
		{"airline ok", Airline, NewRecord("AirlineKey", "ba", "AirlineName", " British Airways ", "Alliance", "oneworld"), ""},
		{"airline bad key", Airline, NewRecord("AirlineKey", "12", "AirlineName", "X"), "Invalid AirlineKey"},
		{"airline missing name", Airline, NewRecord("AirlineKey", "UA", "AirlineName", "  "), "Missing AirlineName"},
		{"airport ok", Airport, NewRecord("AirportKey", "lhr", "AirportName", "Heathrow", "City", "London", "Country", "UK"), ""},
		{"airport bad key", Airport, NewRecord("AirportKey", "", "AirportName", "Heathrow", "City", "London"), "Invalid AirportKey"},
		{"airport missing city", Airport, NewRecord("AirportKey", "LHR", "AirportName", "Heathrow", "City", nil, "Country", "UK"), "Missing required fields"},
		{"flight ok", Flight, NewRecord("FlightKey", "ba117", "OriginAirportKey", "lhr", "DestinationAirportKey", "jfk"), ""},
		{"flight bad key", Flight, NewRecord("FlightKey", "???", "OriginAirportKey", "LHR", "DestinationAirportKey", "JFK"), "Invalid FlightKey"},
		{"flight missing airport", Flight, NewRecord("FlightKey", "BA117", "OriginAirportKey", "LHR", "DestinationAirportKey", "123"), "Missing airport codes"},
		{"passenger ok", Passenger, NewRecord("PassengerKey", "P1234", "FullName", "Ada Lovelace"), ""},
		{"passenger missing name", Passenger, NewRecord("PassengerKey", "P1234", "FullName", ""), "Missing FullName"},
		{"sale ok", Sale, NewRecord("TransactionID", "45000", "TransactionDate", "2024-03-01", "PassengerID", "P1234", "FlightID", "BA117"), ""},
		{"sale bad date", Sale, NewRecord("TransactionID", "45000", "TransactionDate", "not-a-date", "PassengerID", "P1234", "FlightID", "BA117"), "Missing required fields"},
		{"sale bad flight", Sale, NewRecord("TransactionID", "45000", "TransactionDate", "2024-03-01", "PassengerID", "P1234", "FlightID", "none"), "Missing required fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCleaner(NewKeyNormalizer(nil), nil)
			p := c.Clean(tt.kind, []RawRecord{tt.row})

			if tt.wantReason == "" {
				if len(p.Clean) != 1 || len(p.Quarantined) != 0 {
					t.Fatalf("got %d clean / %d quarantined, want 1 / 0: %+v", len(p.Clean), len(p.Quarantined), p.Quarantined)
				}
				if p.Clean[0].Table != tt.kind.Table() {
					t.Errorf("clean table = %q, want %q", p.Clean[0].Table, tt.kind.Table())
				}
				keys, want := p.Clean[0].Fields.Keys(), EntityFor(tt.kind).Fields()
				if strings.Join(keys, ",") != strings.Join(want, ",") {
					t.Errorf("clean fields = %v, want %v", keys, want)
				}
				return
			}
			if len(p.Clean) != 0 || len(p.Quarantined) != 1 {
				t.Fatalf("got %d clean / %d quarantined, want 0 / 1", len(p.Clean), len(p.Quarantined))
			}
			q := p.Quarantined[0]
			if q.ErrorReason != tt.wantReason {
				t.Errorf("reason = %q, want %q", q.ErrorReason, tt.wantReason)
			}
			if q.TableName != tt.kind.Table() {
				t.Errorf("table_name = %q, want %q", q.TableName, tt.kind.Table())
			}
		})
	}
}

func TestCleaner_CleanShapes(t *testing.T) {
	c := NewCleaner(NewKeyNormalizer(NewSequences(1000, 40000)), nil)

	airport := c.Clean(Airport, []RawRecord{
		NewRecord("airport_key", "a", "AirportName", "Alpha", "City", "Aville", "Country", "USA"),
	}).Clean[0].Fields
	assertFields(t, airport, "airportkey", "AXX", "airportname", "Alpha", "city", "Aville", "country", "United States")

	passenger := c.Clean(Passenger, []RawRecord{
		NewRecord("FullName", "Grace Hopper", "Email", "not-an-email"),
	}).Clean[0].Fields
	assertFields(t, passenger,
		"passengerkey", "P1001",
		"fullname", "Grace Hopper",
		"email", "grace.hopper@example.com",
		"loyaltystatus", DefaultLoyaltyStatus)

	sale := c.Clean(Sale, []RawRecord{
		NewRecord(
			"TransactionID", 39999,
			"TransactionDate", "2024/03/01 10:00",
			"PassengerID", "",
			"FlightID", "1234ba",
			"TicketPrice", "$1,234.56",
			"Taxes", "garbage",
		),
	}).Clean[0].Fields
	assertFields(t, sale,
		"transactionid", int64(40001),
		"datekey", int64(20240301),
		"passengerkey", "P1002",
		"flightkey", "BA1234",
		"ticketprice", 1234.56,
		"taxes", 0.0,
		"baggagefees", 0.0,
		"totalamount", 0.0)
}

func assertFields(t *testing.T, got Record, pairs ...any) {
	t.Helper()
	want := NewRecord(pairs...)
	if got.Len() != want.Len() {
		t.Fatalf("got %d fields %v, want %v", got.Len(), got.Keys(), want.Keys())
	}
	for i, k := range want.Keys() {
		if got.Keys()[i] != k {
			t.Errorf("field %d = %q, want %q", i, got.Keys()[i], k)
		}
		if g := got.Value(k); g != want.Value(k) {
			t.Errorf("%s = %#v, want %#v", k, g, want.Value(k))
		}
	}
}

func TestCleaner_PreservesOrderAndOriginalRow(t *testing.T) {
	c := NewCleaner(nil, nil)
	rows := []RawRecord{
		NewRecord("AirlineKey", "AA", "AirlineName", "American", "Extra", "kept"),
		NewRecord("AirlineKey", "", "AirlineName", "Nobody"),
		NewRecord("AirlineKey", "DL", "AirlineName", "Delta"),
		NewRecord("AirlineKey", "UA", "AirlineName", ""),
		NewRecord("AirlineKey", "BA", "AirlineName", "British"),
	}
	p := c.Clean(Airline, rows)

	var keys []string
	for _, r := range p.Clean {
		keys = append(keys, r.Fields.Value("airlinekey").(string))
	}
	if len(keys) != 3 || keys[0] != "AA" || keys[1] != "DL" || keys[2] != "BA" {
		t.Errorf("clean order = %v, want [AA DL BA]", keys)
	}
	if len(p.Quarantined) != 2 ||
		p.Quarantined[0].ErrorReason != "Invalid AirlineKey" ||
		p.Quarantined[1].ErrorReason != "Missing AirlineName" {
		t.Fatalf("quarantine = %+v", p.Quarantined)
	}

	// original_data is the row as received, unmapped columns included.
	orig := p.Quarantined[0].OriginalData
	if orig.Value("AirlineName") != "Nobody" {
		t.Errorf("original_data = %v, want the raw row", orig.Keys())
	}
}

func TestCleaner_IdempotentForKeyedRows(t *testing.T) {
	c := NewCleaner(nil, nil)
	row := NewRecord(
		"TransactionID", "45000",
		"TransactionDate", "2024-03-01",
		"PassengerID", "P5000",
		"FlightID", "BA117",
		"TotalAmount", "99.90",
	)

	first, err := json.Marshal(c.Clean(Sale, []RawRecord{row}).Records())
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(c.Clean(Sale, []RawRecord{row}).Records())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("cleaning twice differs:\n%s\n%s", first, second)
	}
	if p, tx := c.Keys().Sequences().Snapshot(); p != DefaultPassengerSeq || tx != DefaultTransactionSeq {
		t.Errorf("sequences moved to (%d, %d) for keyed rows", p, tx)
	}
}

func TestCleaner_NamelessPassengerConsumesId(t *testing.T) {
	c := NewCleaner(NewKeyNormalizer(NewSequences(1000, 40000)), nil)
	p := c.Clean(Passenger, []RawRecord{
		NewRecord("FullName", ""),
		NewRecord("FullName", "Alan Turing"),
	})
	if len(p.Clean) != 1 {
		t.Fatalf("clean = %d, want 1", len(p.Clean))
	}
	if got := p.Clean[0].Fields.Value("passengerkey"); got != "P1002" {
		t.Errorf("passengerkey = %v, want P1002", got)
	}
}

func TestCleaner_RecordsCounts(t *testing.T) {
	rec := newCountingRecorder()
	c := NewCleaner(nil, rec)
	c.Clean(Airline, []RawRecord{
		NewRecord("AirlineKey", "AA", "AirlineName", "American"),
		NewRecord("AirlineKey", "", "AirlineName", "Nobody"),
	})
	if rec.cleaned["airlines"] != 1 || rec.quarantined[StageClean] != 1 {
		t.Errorf("recorded cleaned=%d quarantined=%d, want 1 and 1", rec.cleaned["airlines"], rec.quarantined[StageClean])
	}
}
