package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWRT/task-tracker/internal/models"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2030-05-04", want: time.Date(2030, time.May, 4, 0, 0, 0, 0, time.UTC)},
		{in: "2030-05-04T10:30:00Z", want: time.Date(2030, time.May, 4, 10, 30, 0, 0, time.UTC)},
		{in: "2030-05-04T12:30:00+02:00", want: time.Date(2030, time.May, 4, 10, 30, 0, 0, time.UTC)},
		{in: "2030-05-04T10:30:00.123456789Z", want: time.Date(2030, time.May, 4, 10, 30, 0, 123456789, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseDueDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	for _, in := range []string{"tomorrow", "04/05/2030", "2030-13-01"} {
		_, err := parseDueDate(in)
		assert.True(t, models.IsValidationError(err), in)
	}
}

func TestUpdateTaskRequestBody_Patch(t *testing.T) {
	var body UpdateTaskRequestBody
	require.NoError(t, json.Unmarshal([]byte(`{"description":null,"dueDate":null,"isCompleted":false,"priority":"low"}`), &body))

	patch, err := body.patch()
	require.NoError(t, err)
	assert.Nil(t, patch.Title)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "", *patch.Description)
	assert.True(t, patch.ClearDueDate)
	assert.Nil(t, patch.DueDate)
	require.NotNil(t, patch.IsCompleted)
	assert.False(t, *patch.IsCompleted)
	require.NotNil(t, patch.Priority)
	assert.Equal(t, models.PriorityLow, *patch.Priority)
	assert.Nil(t, patch.Tags)
}

func TestUpdateTaskRequestBody_EmptyIsEmptyPatch(t *testing.T) {
	var body UpdateTaskRequestBody
	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))

	patch, err := body.patch()
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestUpdateTaskRequestBody_NullPriority(t *testing.T) {
	var body UpdateTaskRequestBody
	require.NoError(t, json.Unmarshal([]byte(`{"priority":null}`), &body))

	_, err := body.patch()
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "priority", ve.Field)
}

func TestCreateTaskRequestBody_Input(t *testing.T) {
	var body CreateTaskRequestBody
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Pay rent","priority":"high","dueDate":"2030-05-04","tags":["home"]}`), &body))

	in, err := body.input()
	require.NoError(t, err)
	assert.Equal(t, "Pay rent", in.Title)
	assert.Equal(t, models.PriorityHigh, in.Priority)
	require.NotNil(t, in.DueDate)
	assert.True(t, time.Date(2030, time.May, 4, 0, 0, 0, 0, time.UTC).Equal(*in.DueDate))
	assert.Equal(t, []string{"home"}, in.Tags)
}

func TestCreateTaskRequestBody_AbsentOrNullLeavesDefaults(t *testing.T) {
	for _, raw := range []string{`{"title":"x"}`, `{"title":"x","priority":null,"dueDate":null}`} {
		var body CreateTaskRequestBody
		require.NoError(t, json.Unmarshal([]byte(raw), &body))

		in, err := body.input()
		require.NoError(t, err, raw)
		assert.Equal(t, models.Priority(""), in.Priority, raw)
		assert.Nil(t, in.DueDate, raw)
	}
}

func TestCreateTaskRequestBody_RejectsPresentButInvalid(t *testing.T) {
	tests := []struct {
		raw   string
		field string
	}{
		{raw: `{"title":"x","priority":""}`, field: "priority"},
		{raw: `{"title":"x","priority":"HIGH"}`, field: "priority"},
		{raw: `{"title":"x","dueDate":""}`, field: "dueDate"},
		{raw: `{"title":"x","dueDate":"  "}`, field: "dueDate"},
	}
	for _, tt := range tests {
		var body CreateTaskRequestBody
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &body))

		_, err := body.input()
		var ve *models.ValidationError
		require.ErrorAs(t, err, &ve, tt.raw)
		assert.Equal(t, tt.field, ve.Field, tt.raw)
	}
}

func TestUpdateTaskRequestBody_EmptyDueDate(t *testing.T) {
	var body UpdateTaskRequestBody
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":""}`), &body))

	_, err := body.patch()
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dueDate", ve.Field)
}
