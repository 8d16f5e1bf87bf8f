package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	got, err := Name("  Weekly\x00 1:1\n ")
	require.NoError(t, err)
	assert.Equal(t, "Weekly 1:1", got)

	_, err = Name("   ")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Name(strings.Repeat("é", MaxNameRunes))
	require.NoError(t, err)
	_, err = Name(strings.Repeat("é", MaxNameRunes+1))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestTextAndTheme(t *testing.T) {
	got, err := Text("\tWhat went well?\x07")
	require.NoError(t, err)
	assert.Equal(t, "What went well?", got)

	_, err = Text("")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "question.text", fe.Field)

	theme, err := Theme("")
	require.NoError(t, err)
	assert.Empty(t, theme)

	_, err = Theme(strings.Repeat("x", MaxThemeRunes+1))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestAnswerKeepsLineBreaks(t *testing.T) {
	got, err := Answer(" line one\r\nline two\tend\x1b ")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\tend", got)

	empty, err := Answer("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Answer(strings.Repeat("a", MaxAnswerRunes+1))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestInvalidUTF8Dropped(t *testing.T) {
	got, err := Text("ok\xff\xfe")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&CreateRequest{Name: "n"}))

	err := Struct(&CreateRequest{})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "name is required")

	require.NoError(t, Struct(&PatchRequest{Action: "markAsked", Question: &QuestionInput{Text: "Q"}}))
	require.ErrorIs(t, Struct(&PatchRequest{}), ErrInvalid)

	long := strings.Repeat("x", 70000)
	err = Struct(&PatchRequest{Action: "setAnswer", Value: &long})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "value is too long")
}
