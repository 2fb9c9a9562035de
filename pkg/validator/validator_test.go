package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,ident"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=1000"`
}

type productRequest struct {
	Title     string `json:"title" validate:"required,min=2,max=10"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
	Policy    string `json:"policy" validate:"omitempty,oneof=sum max"`
	Internal  string `json:"-"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(addItemRequest{ProductID: "p1", Quantity: 3}))
	assert.NoError(t, Validate(productRequest{Title: "Mug", UnitPrice: 0, Policy: "max"}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(addItemRequest{Quantity: 1}))
	assert.Equal(t, "is required", fields["product_id"])
	assert.NotContains(t, fields, "ProductID")
}

func TestValidate_QuantityBounds(t *testing.T) {
	fields := fieldsOf(t, Validate(addItemRequest{ProductID: "p1", Quantity: 0}))
	assert.Equal(t, "must be greater than or equal to 1", fields["quantity"])

	fields = fieldsOf(t, Validate(addItemRequest{ProductID: "p1", Quantity: 5000}))
	assert.Equal(t, "must be less than or equal to 1000", fields["quantity"])
}

func TestValidate_Ident(t *testing.T) {
	fields := fieldsOf(t, Validate(addItemRequest{ProductID: "bad id!", Quantity: 1}))
	assert.Contains(t, fields["product_id"], "letters, digits")
}

func TestValidate_StringLengthMessages(t *testing.T) {
	fields := fieldsOf(t, Validate(productRequest{Title: "x"}))
	assert.Equal(t, "must be at least 2 characters", fields["title"])

	fields = fieldsOf(t, Validate(productRequest{Title: "far too long a title"}))
	assert.Equal(t, "must be at most 10 characters", fields["title"])
}

func TestValidate_OneOf(t *testing.T) {
	fields := fieldsOf(t, Validate(productRequest{Title: "Mug", Policy: "avg"}))
	assert.Equal(t, "must be one of: sum max", fields["policy"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(addItemRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'product_id' is required")
	assert.Contains(t, err.Error(), "field 'quantity'")
}

func TestIsIdent(t *testing.T) {
	assert.True(t, IsIdent("p1"))
	assert.True(t, IsIdent("sku-42_blue.xl"))
	assert.False(t, IsIdent(""))
	assert.False(t, IsIdent("-leading"))
	assert.False(t, IsIdent("has space"))
	assert.False(t, IsIdent(strings.Repeat("a", 65)))
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"product_id":"p1","quantity":2}`, ""},
		{"invalid json", `{"product_id":`, "decode request body"},
		{"unknown field", `{"product_id":"p1","quantity":2,"price":1}`, "decode request body"},
		{"trailing data", `{"product_id":"p1","quantity":2}{}`, "trailing data"},
		{"fails validation", `{"product_id":"p1","quantity":0}`, "field 'quantity'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst addItemRequest
			err := DecodeAndValidate(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, addItemRequest{ProductID: "p1", Quantity: 2}, dst)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
