package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
requests:
  - name: CreateUserRequest
    routes: ["POST /users"]
    fields:
      - name: email
        rules: required|email
      - name: age
        rules: [integer]
    annotations:
      summary: Register a user
      email: Login address
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	name, ok := reg.Resolve("post", "/users")
	require.True(t, ok)
	assert.Equal(t, "CreateUserRequest", name)

	_, ok = reg.Resolve("GET", "/users")
	assert.False(t, ok)

	fields := reg.RulesFor(name)
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].Name)
	assert.Equal(t, "required|email", fields[0].Rules)
	assert.Equal(t, []any{"integer"}, fields[1].Rules)

	assert.Equal(t, "Login address", reg.Lookup(name, "email", "x"))
	assert.Equal(t, "x", reg.Lookup(name, "age", "x"))
	assert.Equal(t, "x", reg.Lookup("Missing", "email", "x"))
}

func TestBind(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Bind("GET", "/users", "ListUsers"), ErrUnknownRequest)

	require.NoError(t, reg.Register(Request{Name: "ListUsers"}))
	require.NoError(t, reg.Bind("GET", "/users", "ListUsers"))

	name, ok := reg.Resolve("GET", "/users")
	assert.True(t, ok)
	assert.Equal(t, "ListUsers", name)
	assert.Nil(t, reg.RulesFor(name))
}

func TestRegisterBadRoute(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(Request{Name: "X", Routes: []string{"/users"}}))
	assert.ErrorIs(t, reg.Register(Request{}), ErrUnknownRequest)
}
