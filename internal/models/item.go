package models

import "time"

// DateLayout is the layout of Item.Date as written by the inventory service.
const DateLayout = "2006-01-02"

// Item represents a stocked item at a single location. Name is the document
// identity inside the location's inventory collection and never changes.
type Item struct {
	Name       string `json:"itemName"`
	Quantity   int    `json:"quantity"`
	Date       string `json:"date"`
	LocationID string `json:"locationId"`
}

// LastModified parses Date. Dates that cannot be parsed report the zero time,
// the earliest possible date.
func (i Item) LastModified() time.Time {
	t, err := time.Parse(DateLayout, i.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Today formats t as an item date.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}
