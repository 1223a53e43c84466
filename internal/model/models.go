package model

// RawRecord is one data row from the bulk network table, after the
// CSV header has been stripped and the ASN parsed.
type RawRecord struct {
	Network string `db:"network"`
	ASN     int    `db:"asn"`
	Name    string `db:"org_name"`
	Country string `db:"country_code"`
}

// NetworkRecord is the payload attached to a trie node. Immutable once
// inserted.
type NetworkRecord struct {
	Network string `json:"network"`
	ASN     int    `json:"asn"`
	Country string `json:"country_code"`
}

// ASNEntry describes one autonomous system and every network observed
// for it, in load order (duplicates preserved).
type ASNEntry struct {
	Name     string   `json:"name"`
	Country  string   `json:"country_code"`
	Networks []string `json:"networks"`
}

type LookupResponse struct {
	IP          string `json:"ip"`
	Network     string `json:"network"`
	ASN         int    `json:"asn"`
	Name        string `json:"name,omitempty"`
	CountryCode string `json:"country_code"`
}

type CountryResponse struct {
	Country string `json:"country_code"`
	ASNs    []int  `json:"asns"`
}

type NetworksRequest struct {
	Specifiers []string `json:"specifiers"`
}

type NetworksResponse struct {
	Networks []string `json:"networks"`
}

type Error struct {
	Message string `json:"message"`
}
