package handlers

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the money tags to gin's validator engine.
// money: positive with at most two decimal places. money_nonneg: same, zero allowed.
func RegisterValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("money", validateMoney(false))
		_ = v.RegisterValidation("money_nonneg", validateMoney(true))
	})
}

// decimalValue lets validator treat decimals as strings, which keeps omitempty working on pointers.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validateMoney(allowZero bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || !domain.HasMoneyScale(d) {
			return false
		}
		if allowZero {
			return !d.IsNegative()
		}
		return d.IsPositive()
	}
}
