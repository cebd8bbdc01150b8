package core

// entities.go defines the closed set of entity kinds, their destination
// tables, header mappings and per-row cleaning rules.

import (
	"fmt"
	"strings"
)

// EntityKind is one of the five ingestible entity types.
type EntityKind int

const (
	Airline EntityKind = iota
	Airport
	Flight
	Passenger
	Sale

	numEntityKinds
)

// QuarantineTable is the table holding quarantine entries.
const QuarantineTable = "dirty_data"

// EntityKinds lists every kind in detection priority order.
var EntityKinds = []EntityKind{Airline, Airport, Flight, Passenger, Sale}

var entityNames = [numEntityKinds]string{
	Airline:   "airline",
	Airport:   "airport",
	Flight:    "flight",
	Passenger: "passenger",
	Sale:      "sale",
}

var entityAliases = map[string]EntityKind{
	"airline":                 Airline,
	"airlines":                Airline,
	"carrier":                 Airline,
	"airport":                 Airport,
	"airports":                Airport,
	"flight":                  Flight,
	"flights":                 Flight,
	"passenger":               Passenger,
	"passengers":              Passenger,
	"sale":                    Sale,
	"sales":                   Sale,
	"travel_agency_sales_001": Sale,
	"factairlinesales":        Sale,
}

func (k EntityKind) String() string {
	if k < 0 || k >= numEntityKinds {
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
	return entityNames[k]
}

// Table returns the destination table for k.
func (k EntityKind) Table() string {
	return EntityFor(k).Table()
}

// ParseEntityKind resolves an entity or table name. auto is true when the
// caller asked for detection ("auto" or empty).
func ParseEntityKind(name string) (kind EntityKind, auto bool, err error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "auto" {
		return 0, true, nil
	}
	if k, ok := entityAliases[n]; ok {
		return k, false, nil
	}
	return 0, false, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

// ColumnMapping maps accepted header spellings to a canonical field name.
type ColumnMapping struct {
	Field   string   `json:"field"`
	Headers []string `json:"headers"`
}

// Entity is the cleaning contract for one kind. The set is closed: only
// this package can implement it.
type Entity interface {
	Kind() EntityKind
	Table() string
	Columns() []ColumnMapping
	// Fields lists the clean record fields in insert column order.
	Fields() []string
	cleanRow(keys *KeyNormalizer, row Record) (Record, error)
}

var entities = [numEntityKinds]Entity{
	Airline:   airlineEntity{},
	Airport:   airportEntity{},
	Flight:    flightEntity{},
	Passenger: passengerEntity{},
	Sale:      saleEntity{},
}

// EntityFor returns the Entity for k. It panics for a kind outside the set.
func EntityFor(k EntityKind) Entity {
	if k < 0 || k >= numEntityKinds {
		panic(fmt.Sprintf("core: unknown entity kind %d", int(k)))
	}
	return entities[k]
}

// EntityForTable returns the Entity whose destination table is table.
func EntityForTable(table string) (Entity, bool) {
	for _, e := range entities {
		if e.Table() == table {
			return e, true
		}
	}
	return nil, false
}

// normalizeHeader folds a header for matching: case, spaces, underscores
// and hyphens are ignored.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(h))
}

// mapColumns renames the columns of row to canonical field names, dropping
// anything the entity does not know. When two headers map to the same field
// the first present value wins.
func mapColumns(e Entity, row Record) Record {
	lookup := make(map[string]string)
	for _, c := range e.Columns() {
		for _, h := range c.Headers {
			lookup[normalizeHeader(h)] = c.Field
		}
	}

	var mapped Record
	for _, k := range row.keys {
		field, ok := lookup[normalizeHeader(k)]
		if !ok {
			continue
		}
		v := row.values[k]
		if prev, exists := mapped.Get(field); exists {
			if _, present := scalarString(prev); present {
				continue
			}
		}
		mapped.Set(field, v)
	}
	return mapped
}

// DetectEntity sniffs the entity kind from a header row. Kinds are tried in
// priority order and the first match wins.
func DetectEntity(headers []string) (EntityKind, error) {
	has := make(map[string]bool, len(headers))
	for _, h := range headers {
		has[normalizeHeader(h)] = true
	}
	switch {
	case has["airlinekey"] || has["airlinename"]:
		return Airline, nil
	case has["airportkey"] || has["airportname"]:
		return Airport, nil
	case has["flightkey"] && (has["originairportkey"] || has["destinationairportkey"]):
		return Flight, nil
	case has["passengerkey"] || has["fullname"]:
		return Passenger, nil
	case has["transactionid"] && (has["passengerid"] || has["flightid"]):
		return Sale, nil
	}
	return 0, ErrUndeterminedEntityType
}

type airlineEntity struct{}

func (airlineEntity) Kind() EntityKind { return Airline }
func (airlineEntity) Table() string    { return "airlines" }

func (airlineEntity) Fields() []string {
	return []string{"airlinekey", "airlinename", "alliance"}
}

func (airlineEntity) Columns() []ColumnMapping {
	return []ColumnMapping{
		{Field: "airlinekey", Headers: []string{"AirlineKey"}},
		{Field: "airlinename", Headers: []string{"AirlineName"}},
		{Field: "alliance", Headers: []string{"Alliance"}},
	}
}

func (airlineEntity) cleanRow(keys *KeyNormalizer, row Record) (Record, error) {
	key, ok := keys.CarrierKey(row.Value("airlinekey"))
	if !ok {
		return Record{}, invalidKey("Invalid AirlineKey")
	}
	name := trimmedText(row.Value("airlinename"))
	if name == "" {
		return Record{}, missingField("Missing AirlineName")
	}
	return NewRecord(
		"airlinekey", key,
		"airlinename", name,
		"alliance", trimmedText(row.Value("alliance")),
	), nil
}

type airportEntity struct{}

func (airportEntity) Kind() EntityKind { return Airport }
func (airportEntity) Table() string    { return "airports" }

func (airportEntity) Fields() []string {
	return []string{"airportkey", "airportname", "city", "country"}
}

func (airportEntity) Columns() []ColumnMapping {
	return []ColumnMapping{
		{Field: "airportkey", Headers: []string{"AirportKey"}},
		{Field: "airportname", Headers: []string{"AirportName"}},
		{Field: "city", Headers: []string{"City"}},
		{Field: "country", Headers: []string{"Country"}},
	}
}

func (airportEntity) cleanRow(keys *KeyNormalizer, row Record) (Record, error) {
	key, ok := keys.AirportKey(row.Value("airportkey"))
	if !ok {
		return Record{}, invalidKey("Invalid AirportKey")
	}
	name := trimmedText(row.Value("airportname"))
	city := trimmedText(row.Value("city"))
	country := NormalizeCountry(row.Value("country"))
	if name == "" || city == "" || country == "" {
		return Record{}, missingField("Missing required fields")
	}
	return NewRecord(
		"airportkey", key,
		"airportname", name,
		"city", city,
		"country", country,
	), nil
}

type flightEntity struct{}

func (flightEntity) Kind() EntityKind { return Flight }
func (flightEntity) Table() string    { return "flights" }

func (flightEntity) Fields() []string {
	return []string{"flightkey", "originairportkey", "destinationairportkey", "aircrafttype"}
}

func (flightEntity) Columns() []ColumnMapping {
	return []ColumnMapping{
		{Field: "flightkey", Headers: []string{"FlightKey"}},
		{Field: "originairportkey", Headers: []string{"OriginAirportKey"}},
		{Field: "destinationairportkey", Headers: []string{"DestinationAirportKey"}},
		{Field: "aircrafttype", Headers: []string{"AircraftType"}},
	}
}

func (flightEntity) cleanRow(keys *KeyNormalizer, row Record) (Record, error) {
	key, ok := keys.FlightKey(row.Value("flightkey"))
	if !ok {
		return Record{}, invalidKey("Invalid FlightKey")
	}
	origin, okOrigin := keys.AirportKey(row.Value("originairportkey"))
	dest, okDest := keys.AirportKey(row.Value("destinationairportkey"))
	if !okOrigin || !okDest {
		return Record{}, missingField("Missing airport codes")
	}
	return NewRecord(
		"flightkey", key,
		"originairportkey", origin,
		"destinationairportkey", dest,
		"aircrafttype", trimmedText(row.Value("aircrafttype")),
	), nil
}

// DefaultLoyaltyStatus is recorded for passengers without one.
const DefaultLoyaltyStatus = "Bronze"

type passengerEntity struct{}

func (passengerEntity) Kind() EntityKind { return Passenger }
func (passengerEntity) Table() string    { return "passengers" }

func (passengerEntity) Fields() []string {
	return []string{"passengerkey", "fullname", "email", "loyaltystatus"}
}

func (passengerEntity) Columns() []ColumnMapping {
	return []ColumnMapping{
		{Field: "passengerkey", Headers: []string{"PassengerKey"}},
		{Field: "fullname", Headers: []string{"FullName"}},
		{Field: "email", Headers: []string{"Email"}},
		{Field: "loyaltystatus", Headers: []string{"LoyaltyStatus"}},
	}
}

func (passengerEntity) cleanRow(keys *KeyNormalizer, row Record) (Record, error) {
	// The key is derived first, so a nameless row still consumes a
	// synthetic id when it has none of its own.
	key := keys.PassengerKey(row.Value("passengerkey"))
	name := trimmedText(row.Value("fullname"))
	if name == "" {
		return Record{}, missingField("Missing FullName")
	}
	status := trimmedText(row.Value("loyaltystatus"))
	if status == "" {
		status = DefaultLoyaltyStatus
	}
	return NewRecord(
		"passengerkey", key,
		"fullname", name,
		"email", NormalizeEmail(row.Value("email"), name),
		"loyaltystatus", status,
	), nil
}

type saleEntity struct{}

func (saleEntity) Kind() EntityKind { return Sale }
func (saleEntity) Table() string    { return "factairlinesales" }

func (saleEntity) Fields() []string {
	return []string{
		"transactionid", "datekey", "passengerkey", "flightkey",
		"ticketprice", "taxes", "baggagefees", "totalamount",
	}
}

func (saleEntity) Columns() []ColumnMapping {
	return []ColumnMapping{
		{Field: "transactionid", Headers: []string{"TransactionID"}},
		{Field: "transactiondate", Headers: []string{"TransactionDate"}},
		{Field: "passengerkey", Headers: []string{"PassengerID", "PassengerKey"}},
		{Field: "flightkey", Headers: []string{"FlightID", "FlightKey"}},
		{Field: "ticketprice", Headers: []string{"TicketPrice"}},
		{Field: "taxes", Headers: []string{"Taxes"}},
		{Field: "baggagefees", Headers: []string{"BaggageFees"}},
		{Field: "totalamount", Headers: []string{"TotalAmount"}},
	}
}

func (saleEntity) cleanRow(keys *KeyNormalizer, row Record) (Record, error) {
	txID := keys.TransactionID(row.Value("transactionid"))
	passenger := keys.PassengerKey(row.Value("passengerkey"))
	flight, okFlight := keys.FlightKey(row.Value("flightkey"))
	date, okDate := NormalizeDate(row.Value("transactiondate"))
	if !okFlight || !okDate {
		return Record{}, missingField("Missing required fields")
	}
	return NewRecord(
		"transactionid", txID,
		"datekey", date,
		"passengerkey", passenger,
		"flightkey", flight,
		"ticketprice", NormalizeAmount(row.Value("ticketprice")),
		"taxes", NormalizeAmount(row.Value("taxes")),
		"baggagefees", NormalizeAmount(row.Value("baggagefees")),
		"totalamount", NormalizeAmount(row.Value("totalamount")),
	), nil
}
