package domain

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tenantcore/pkg/domain-errors"
)

const validV4 = "550e8400-e29b-41d4-a716-446655440000"

// TestCreate_Invariants validates the construction invariant:
// "identities are non-empty UUIDv4 values; invalid input never yields an instance"
func TestCreate_Invariants(t *testing.T) {
	in := NewInterner()

	t.Run("rejects empty string", func(t *testing.T) {
		id, err := in.Create(KindTenant, "")
		require.Error(t, err)
		assert.Nil(t, id)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := in.Create(KindTenant, "not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := in.Create(KindTenant, uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
	})

	t.Run("rejects non-v4 UUID", func(t *testing.T) {
		v1 := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
		_, err := in.Create(KindTenant, v1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
	})

	t.Run("accepts valid UUIDv4", func(t *testing.T) {
		id, err := in.Create(KindTenant, validV4)
		require.NoError(t, err)
		assert.Equal(t, validV4, id.String())
		assert.Equal(t, KindTenant, id.Kind())
		assert.NoError(t, id.Validate())
	})

	t.Run("nothing is interned on failure", func(t *testing.T) {
		fresh := NewInterner()
		_, _ = fresh.Create(KindUser, "bogus")
		assert.Equal(t, 0, fresh.Len())
	})
}

// TestCreate_Interning verifies create(v) is create(v) by reference.
func TestCreate_Interning(t *testing.T) {
	in := NewInterner()

	t.Run("same kind and value yields same pointer", func(t *testing.T) {
		a := in.MustCreate(KindUser, validV4)
		b := in.MustCreate(KindUser, validV4)
		assert.Same(t, a, b)
	})

	t.Run("upper-case input interns to the lower-case instance", func(t *testing.T) {
		a := in.MustCreate(KindUser, validV4)
		b := in.MustCreate(KindUser, strings.ToUpper(validV4))
		assert.Same(t, a, b)
	})

	t.Run("different values yield different instances", func(t *testing.T) {
		a := in.Generate(KindUser)
		b := in.Generate(KindUser)
		assert.NotSame(t, a, b)
		assert.False(t, a.Equals(b))
	})

	t.Run("different kinds never collapse", func(t *testing.T) {
		tenant := in.MustCreate(KindTenant, validV4)
		user := in.MustCreate(KindUser, validV4)
		assert.NotSame(t, tenant, user)
		assert.False(t, tenant.Equals(user))
	})

	t.Run("separate interners do not share instances", func(t *testing.T) {
		other := NewInterner()
		assert.NotSame(t, in.MustCreate(KindUser, validV4), other.MustCreate(KindUser, validV4))
	})
}

func TestClear(t *testing.T) {
	in := NewInterner()
	before := in.MustCreate(KindTenant, validV4)
	require.Equal(t, 1, in.Len())

	in.Clear()
	assert.Equal(t, 0, in.Len())

	// Held references stay usable; new lookups get a fresh instance.
	assert.Equal(t, validV4, before.String())
	after := in.MustCreate(KindTenant, validV4)
	assert.NotSame(t, before, after)
	assert.True(t, before.Equals(after))
}

func TestEqualsCompareHash(t *testing.T) {
	in := NewInterner()
	a := in.MustCreate(KindGeneric, "11111111-1111-4111-8111-111111111111")
	b := in.MustCreate(KindGeneric, "22222222-2222-4222-8222-222222222222")

	assert.True(t, a.Equals(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, a.Hash(), in.MustCreate(KindGeneric, a.String()).Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())

	var nilID *Identity
	assert.True(t, nilID.Equals(nil))
	assert.False(t, nilID.Equals(a))
	assert.Equal(t, -1, nilID.Compare(a))
}

func TestValidate_ZeroValueIsInvalid(t *testing.T) {
	var zero Identity
	err := zero.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
}

// TestParseID_SecurityInvariants validates trust-boundary parsing rules.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},
		{"Braced form", "{" + validV4 + "}", true},
		{"URN form", "urn:uuid:" + validV4, true},
		{"Padded with whitespace", " " + validV4 + " ", true},

		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		{"Valid UUID lowercase", validV4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentityFormat))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCreate_ConcurrentCallersShareInstance(t *testing.T) {
	in := NewInterner()
	const goroutines = 32

	results := make([]*Identity, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = in.MustCreate(KindDepartment, validV4)
		}()
	}
	wg.Wait()

	for _, id := range results[1:] {
		assert.Same(t, results[0], id)
	}
	assert.Equal(t, 1, in.Len())
}
