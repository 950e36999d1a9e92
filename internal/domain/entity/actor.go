package entity

// Actor identifies who performed an operation. It is supplied by the caller
// and recorded on ledger rows.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// System is the actor used for work started by the service itself
var System = Actor{ID: "system", Role: "system"}

// Valid reports whether the actor carries an identity
func (a Actor) Valid() bool {
	return a.ID != ""
}
