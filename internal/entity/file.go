package entity

import "time"

// File is an uploaded document reference. The bytes live in object storage
// under Filename; this row records ownership.
type File struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}
