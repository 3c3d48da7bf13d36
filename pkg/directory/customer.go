package directory

import (
	"context"
	"time"
)

// Customer is a read-only record from the customer directory
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`      // given name, used in greetings
	FullName  string    `json:"full_name"` // full legal name
	RUT       string    `json:"rut"`       // tax id
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Metadata returns the opaque fields forwarded to the dialogue engine
func (c *Customer) Metadata() map[string]string {
	if c == nil {
		return nil
	}
	return map[string]string{
		"customer_id":        c.ID,
		"customer_name":      c.Name,
		"customer_full_name": c.FullName,
		"customer_rut":       c.RUT,
		"customer_phone":     c.Phone,
	}
}

// Directory resolves callers to customer records.
//
// Lookup returns (nil, nil) when no candidate matches or the candidate list is empty.
// A non-nil error means the directory could not be queried at all.
type Directory interface {
	Lookup(ctx context.Context, candidates []string) (*Customer, error)
}

// Disabled never finds anyone. Used when no customer directory is configured.
type Disabled struct{}

// Lookup always reports not found
func (Disabled) Lookup(ctx context.Context, candidates []string) (*Customer, error) {
	return nil, nil
}
