package clients

// Repo supplies client registrations by id
type Repo interface {
	// Find returns a copy of the registration, or false when none exists
	Find(id string) (*Registration, bool)
	List() []*Registration
}
