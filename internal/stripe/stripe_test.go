package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v78"
)

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":          {nil, false},
		"not found":    {ErrNotFound, false},
		"canceled":     {context.Canceled, false},
		"transport":    {errors.New("connection reset by peer"), true},
		"rate limited": {&stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}, true},
		"server error": {fmt.Errorf("create: %w", &stripe.Error{HTTPStatusCode: http.StatusBadGateway}), true},
		"not impl":     {&stripe.Error{HTTPStatusCode: http.StatusNotImplemented}, false},
		"card error":   {&stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Type: stripe.ErrorTypeCard}, false},
		"bad request":  {&stripe.Error{HTTPStatusCode: http.StatusBadRequest, Type: stripe.ErrorTypeInvalidRequest}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
