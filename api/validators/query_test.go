package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func TestSanitizeStringCutsOnRunes(t *testing.T) {
	assert.Equal(t, "héllo", SanitizeString("  héllo  ", 0))
	assert.Equal(t, "hé", SanitizeString("héllo", 2))
	assert.Equal(t, "ab", SanitizeString("ab c", 3))
}

func TestParseUUIDListAcceptsBothForms(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r := httptest.NewRequest("GET", "/cart?productIds="+a.String()+","+b.String()+"&productIds="+c.String(), nil)
	ids, err := ParseUUIDList(r, "productIds")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b, c}, ids)

	r = httptest.NewRequest("GET", "/cart?productIds=nope", nil)
	_, err = ParseUUIDList(r, "productIds")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePageDefaultsAndBounds(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest("GET", "/product", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultPerPage, page.PerPage)
	assert.Zero(t, page.Offset)

	_, err = ParsePage(httptest.NewRequest("GET", "/product?perPage=0", nil))
	assert.Error(t, err)
	_, err = ParsePage(httptest.NewRequest("GET", "/product?offset=x", nil))
	assert.Error(t, err)
}

func TestParseQueryBool(t *testing.T) {
	v, err := ParseQueryBool(httptest.NewRequest("GET", "/?enabled=true", nil), "enabled")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = ParseQueryBool(httptest.NewRequest("GET", "/", nil), "enabled")
	require.NoError(t, err)
	assert.Nil(t, v)
}

type sampleBody struct {
	Name   string `json:"name" validate:"required,max=5"`
	Status string `json:"status" validate:"omitempty,oneof=pending complete"`
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "ok", body: `{"name":"abc"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"abc","extra":1}`, wantErr: true},
		{name: "two objects", body: `{"name":"a"}{"name":"b"}`, wantErr: true},
		{name: "missing required", body: `{}`, wantErr: true, field: "name"},
		{name: "bad enum", body: `{"name":"a","status":"void"}`, wantErr: true, field: "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			var dest sampleBody
			err := DecodeJSONBody(r, &dest)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			if tc.field != "" {
				details, ok := pkgerrors.As(err).Details().(map[string]any)
				require.True(t, ok)
				assert.Contains(t, details, tc.field)
			}
		})
	}
}
