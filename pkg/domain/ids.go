package domain

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	dErrors "tenantcore/pkg/domain-errors"
)

// Kind tags what an Identity refers to. Identities of different kinds are
// never equal, even when they share the same UUID string.
type Kind uint8

const (
	KindGeneric Kind = iota
	KindTenant
	KindOrganization
	KindDepartment
	KindUser
)

var kindNames = map[Kind]string{
	KindGeneric:      "generic",
	KindTenant:       "tenant",
	KindOrganization: "organization",
	KindDepartment:   "department",
	KindUser:         "user",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Identity is a validated, interned UUIDv4 reference.
//
// Invariants:
//   - value is a canonical lower-case UUIDv4 string
//   - instances obtained from the same Interner with equal (kind, value) are
//     the same pointer
//
// Construct only through an Interner. The zero value is invalid and is
// reported as such by Validate.
type Identity struct {
	kind   Kind
	value  string
	handle uint32
}

// Kind returns the identity's kind tag.
func (id *Identity) Kind() Kind {
	if id == nil {
		return KindGeneric
	}
	return id.kind
}

// String returns the canonical UUID string. Nil identities render as "".
func (id *Identity) String() string {
	if id == nil {
		return ""
	}
	return id.value
}

// UUID returns the parsed value. Only meaningful for valid identities.
func (id *Identity) UUID() uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	u, _ := uuid.Parse(id.value)
	return u
}

// Equals reports whether both identities have the same kind and value.
// Two nil identities are equal; nil never equals a non-nil identity.
func (id *Identity) Equals(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}
	if id == other {
		return true
	}
	return id.kind == other.kind && id.value == other.value
}

// Compare orders identities by value, then kind. Nil sorts first.
func (id *Identity) Compare(other *Identity) int {
	switch {
	case id == nil && other == nil:
		return 0
	case id == nil:
		return -1
	case other == nil:
		return 1
	}
	switch {
	case id.value < other.value:
		return -1
	case id.value > other.value:
		return 1
	case id.kind < other.kind:
		return -1
	case id.kind > other.kind:
		return 1
	}
	return 0
}

// Hash is derived from the underlying string, so equal identities hash equally.
func (id *Identity) Hash() uint64 {
	return xxhash.Sum64String(id.String())
}

// Validate re-checks the format invariant. Interned identities always pass;
// zero or hand-built values do not.
func (id *Identity) Validate() error {
	if id == nil {
		return dErrors.New(dErrors.CodeInvalidIdentityFormat, "identity is nil")
	}
	canonical, err := canonicalize(id.value)
	if err != nil {
		return err
	}
	if canonical != id.value {
		return dErrors.New(dErrors.CodeInvalidIdentityFormat, "identity value is not canonical")
	}
	return nil
}

// MarshalText renders the identity as its UUID string. There is no
// UnmarshalText: decoding must go through an Interner.
func (id *Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// canonicalize validates the UUIDv4 shape and returns the lower-case form.
func canonicalize(value string) (string, error) {
	if value == "" {
		return "", dErrors.New(dErrors.CodeInvalidIdentityFormat, "identity value cannot be empty")
	}
	// uuid.Parse also accepts urn: and braced forms; only the 36-char form is allowed.
	if len(value) != 36 {
		return "", dErrors.New(dErrors.CodeInvalidIdentityFormat, "identity value must be a UUIDv4")
	}
	u, err := uuid.Parse(value)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidIdentityFormat, "identity value must be a UUIDv4")
	}
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return "", dErrors.New(dErrors.CodeInvalidIdentityFormat, "identity value must be a UUIDv4")
	}
	return u.String(), nil
}

type internKey struct {
	kind  Kind
	value string
}

// Interner deduplicates identities. It owns an arena of instances and an index
// from (kind, value) to arena slot. Safe for concurrent use.
//
// Tests should build their own Interner instead of sharing Default so runs do
// not leak identities into each other.
type Interner struct {
	mu    sync.RWMutex
	arena []*Identity
	index map[internKey]uint32
}

// NewInterner returns an empty interning table.
func NewInterner() *Interner {
	return &Interner{index: make(map[internKey]uint32)}
}

var defaultInterner = NewInterner()

// Default returns the process-wide interner used by the Parse helpers.
func Default() *Interner {
	return defaultInterner
}

// Create validates value and returns the interned identity for (kind, value).
//
// Errors: CodeInvalidIdentityFormat when value is empty or not a UUIDv4.
func (in *Interner) Create(kind Kind, value string) (*Identity, error) {
	canonical, err := canonicalize(value)
	if err != nil {
		return nil, err
	}
	key := internKey{kind: kind, value: canonical}

	in.mu.RLock()
	if slot, ok := in.index[key]; ok {
		id := in.arena[slot]
		in.mu.RUnlock()
		return id, nil
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	// Another writer may have won the race between the two locks.
	if slot, ok := in.index[key]; ok {
		return in.arena[slot], nil
	}
	slot := uint32(len(in.arena))
	id := &Identity{kind: kind, value: canonical, handle: slot}
	in.arena = append(in.arena, id)
	in.index[key] = slot
	return id, nil
}

// MustCreate is Create for values known to be valid, such as test fixtures.
func (in *Interner) MustCreate(kind Kind, value string) *Identity {
	id, err := in.Create(kind, value)
	if err != nil {
		panic(err)
	}
	return id
}

// Generate returns a fresh random identity of the given kind.
func (in *Interner) Generate(kind Kind) *Identity {
	// uuid.New always yields a valid v4 value.
	return in.MustCreate(kind, uuid.NewString())
}

// Clear empties the table. References already handed out stay valid but are
// no longer returned by later Create calls.
func (in *Interner) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.arena = nil
	in.index = make(map[internKey]uint32)
}

// Len returns the number of interned identities.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.arena)
}

// Parse interns value as kind using the Default interner.
func Parse(kind Kind, value string) (*Identity, error) {
	return defaultInterner.Create(kind, value)
}

// ParseTenantID constructs a tenant identity from external input.
func ParseTenantID(s string) (*Identity, error) { return Parse(KindTenant, s) }

// ParseOrganizationID constructs an organization identity from external input.
func ParseOrganizationID(s string) (*Identity, error) { return Parse(KindOrganization, s) }

// ParseDepartmentID constructs a department identity from external input.
func ParseDepartmentID(s string) (*Identity, error) { return Parse(KindDepartment, s) }

// ParseUserID constructs a user identity from external input.
func ParseUserID(s string) (*Identity, error) { return Parse(KindUser, s) }

// ParseID constructs a generic identity (aggregate and event ids).
func ParseID(s string) (*Identity, error) { return Parse(KindGeneric, s) }
