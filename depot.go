package air

import "reflect"

// Depot is a per-request key-value store used by Hoops to pass derived
// state (an authenticated user, a session, a trace span) down the chain.
// It supports both explicit string keys and type-keyed values (one value
// per concrete type), matching the two depot surfaces called for by
// statically typed targets without reflection-backed generics.
type Depot struct {
	keyed map[string]interface{}
	typed map[reflect.Type]interface{}
}

// newDepot returns an empty Depot.
func newDepot() *Depot {
	return &Depot{}
}

// reset clears the Depot for reuse from a sync.Pool.
func (d *Depot) reset() {
	d.keyed = nil
	d.typed = nil
}

// Set stores v under key.
func (d *Depot) Set(key string, v interface{}) {
	if d.keyed == nil {
		d.keyed = make(map[string]interface{})
	}
	d.keyed[key] = v
}

// Get retrieves the value stored under key.
func (d *Depot) Get(key string) (interface{}, bool) {
	v, ok := d.keyed[key]
	return v, ok
}

// GetString is a typed convenience wrapper around Get.
func (d *Depot) GetString(key string) (string, bool) {
	v, ok := d.keyed[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Delete removes the value stored under key.
func (d *Depot) Delete(key string) {
	delete(d.keyed, key)
}

// SetByType stores v keyed by its concrete type, so that a later handler
// can retrieve it without knowing the string key the producer used.
func (d *Depot) SetByType(v interface{}) {
	if d.typed == nil {
		d.typed = make(map[reflect.Type]interface{})
	}
	d.typed[reflect.TypeOf(v)] = v
}

// GetByType retrieves the value previously stored via SetByType for the
// type of sample (sample's value is not otherwise used).
func (d *Depot) GetByType(sample interface{}) (interface{}, bool) {
	v, ok := d.typed[reflect.TypeOf(sample)]
	return v, ok
}
