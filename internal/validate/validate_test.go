package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type companion struct {
	Name string `json:"name" validate:"required"`
}

type form struct {
	Name       string      `json:"name" validate:"required,max=5"`
	Category   string      `json:"category" validate:"omitempty,oneof=a b"`
	Companions []companion `json:"companions" validate:"dive"`
}

func TestStructPasses(t *testing.T) {
	require.NoError(t, Struct(form{Name: "Ada", Category: "a"}))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(form{Name: "too long", Category: "c", Companions: []companion{{}}})
	require.Error(t, err)

	var fe Errors
	require.True(t, errors.As(err, &fe))
	require.Len(t, fe, 3)
	require.Equal(t, FieldError{Field: "name", Tag: "max", Param: "5"}, fe[0])
	require.Equal(t, "category", fe[1].Field)
	require.Equal(t, "oneof", fe[1].Tag)
	require.Equal(t, "companions[0].name", fe[2].Field)
	require.Contains(t, err.Error(), "name failed on max=5")
}
