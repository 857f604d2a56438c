package model

import "time"

// Requester represents a row in the `requesters` table. Requesters are
// created lazily with an upsert on their first successful booking
// attempt and never mutated afterwards by this service. The external
// identity string doubles as the contact token in the demo data set.
//
// Fields:
//  ID        – external requester identity (opaque string key).
//  Contact   – contact token, e.g. an email address.
//  Name      – display name.
//  CreatedAt – timestamp of creation.
type Requester struct {
	ID        string    // requesters.id
	Contact   string    // requesters.contact
	Name      string    // requesters.name
	CreatedAt time.Time // requesters.created_at
}
