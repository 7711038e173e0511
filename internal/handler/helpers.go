package handler

import (
	"net/http"
	"reflect"

	"tillpoint/internal/apierror"
	"tillpoint/internal/middleware"
	"tillpoint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.Envelope(apierror.NewFieldValidation(fields)))
		return false
	}
	return true
}

// respondError maps a typed service error to its HTTP status. Untyped errors
// are attached to the context for the ErrorHandler middleware.
func respondError(c *gin.Context, err error) {
	if e, ok := apierror.As(err); ok {
		c.JSON(e.HTTPStatus(), apierror.Envelope(e))
		return
	}
	_ = c.Error(err)
}

// currentActor builds the actor context from the request's JWT claims.
// Returns false after writing the error response.
func currentActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.ActorFromClaims(middleware.GetClaims(c))
	if !ok {
		c.JSON(http.StatusBadRequest, apierror.New("malformed actor claims"))
		return service.Actor{}, false
	}
	return actor, true
}
