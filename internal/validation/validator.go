// Package validation はリクエスト構造体の検証を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/uniswipe/internal/model"
)

// Validator はgo-playground/validatorのラッパー。
// エラーのフィールド名にはjsonタグの名前を使う。
type Validator struct {
	validate *validator.Validate
}

// New はValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct は構造体をタグに従って検証する。
// 検証エラーはINVALID_REQUESTのAPIErrorに変換して返す。
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return ToAPIError(err)
	}
	return nil
}

// Var は単一の値をタグに従って検証する。
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// FieldErrors は検証エラーをフィールド名ごとのメッセージに変換する。
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s は必須です", field)
		case "email":
			out[field] = "メールアドレスの形式が正しくありません"
		case "min":
			out[field] = fmt.Sprintf("%s は%s以上で指定してください", field, e.Param())
		case "max":
			out[field] = fmt.Sprintf("%s は%s以下で指定してください", field, e.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s は %s のいずれかを指定してください", field, e.Param())
		default:
			out[field] = fmt.Sprintf("%s が不正です", field)
		}
	}
	return out
}

// ToAPIError は検証エラーをINVALID_REQUESTのAPIErrorに変換する。
func ToAPIError(err error) *model.APIError {
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return model.NewInvalidRequestError(err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return model.NewInvalidRequestError(strings.Join(msgs, "。"))
}
