package repository

import "github.com/iliyamo/venue-booking/internal/model"

// ContactCodec seals guest contact fields on write and opens them on read.
// Key management and rotation live behind the implementation.
type ContactCodec interface {
	Seal(plain string) (string, error)
	Open(stored string) (string, error)
}

// PlainCodec stores contact fields as-is.
type PlainCodec struct{}

func (PlainCodec) Seal(plain string) (string, error)  { return plain, nil }
func (PlainCodec) Open(stored string) (string, error) { return stored, nil }

func sealContact(c ContactCodec, g model.GuestContact) (model.GuestContact, error) {
	var out model.GuestContact
	var err error
	if out.Name, err = c.Seal(g.Name); err != nil {
		return out, err
	}
	if out.Phone, err = c.Seal(g.Phone); err != nil {
		return out, err
	}
	if out.Email, err = c.Seal(g.Email); err != nil {
		return out, err
	}
	return out, nil
}

func openContact(c ContactCodec, g model.GuestContact) (model.GuestContact, error) {
	var out model.GuestContact
	var err error
	if out.Name, err = c.Open(g.Name); err != nil {
		return out, err
	}
	if out.Phone, err = c.Open(g.Phone); err != nil {
		return out, err
	}
	if out.Email, err = c.Open(g.Email); err != nil {
		return out, err
	}
	return out, nil
}
