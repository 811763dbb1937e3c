package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/pesaflow/pesaflow/internal/shared/errors"
)

type initiateForm struct {
	OrderID     uint   `json:"orderId" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required,msisdn"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		form    initiateForm
		wantErr string
	}{
		{
			name: "valid",
			form: initiateForm{OrderID: 1, PhoneNumber: "0708374149"},
		},
		{
			name:    "missing order id",
			form:    initiateForm{PhoneNumber: "0708374149"},
			wantErr: "orderId is required",
		},
		{
			name:    "bad msisdn",
			form:    initiateForm{OrderID: 1, PhoneNumber: "12345"},
			wantErr: "phoneNumber must be a valid Kenyan mobile number",
		},
		{
			name:    "foreign prefix rejected",
			form:    initiateForm{OrderID: 1, PhoneNumber: "+15551234567"},
			wantErr: "phoneNumber must be a valid Kenyan mobile number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.form)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, apperrors.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
