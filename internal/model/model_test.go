package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docappt/internal/model"
)

func TestSavedAppointmentEncoding(t *testing.T) {
	t.Run("fresh record uses field names of the store", func(t *testing.T) {
		a := model.SavedAppointment{
			BookingRequest: model.BookingRequest{
				Doctor:   "Dr. John Smith",
				Date:     "2023-06-05",
				Time:     "10:00 AM",
				Timezone: "Europe/London",
			},
			ID:        "abc",
			CreatedAt: "2023-06-01T10:00:00.000Z",
		}
		b, err := json.Marshal(a)
		require.NoError(t, err)
		assert.JSONEq(t, `{"doctor":"Dr. John Smith","date":"2023-06-05","time":"10:00 AM","timezone":"Europe/London","id":"abc","createdAt":"2023-06-01T10:00:00.000Z"}`, string(b))
		assert.False(t, a.Malformed())
	})

	t.Run("stored elements are returned verbatim", func(t *testing.T) {
		stored := `[{"id":"x","doctor":"Dr. A","extra":true},42,"junk",{"doctor":7}]`

		var list []model.SavedAppointment
		require.NoError(t, json.Unmarshal([]byte(stored), &list))
		require.Len(t, list, 4)

		assert.Equal(t, "x", list[0].ID)
		assert.Equal(t, "Dr. A", list[0].Doctor)
		assert.False(t, list[0].Malformed())
		assert.True(t, list[1].Malformed())
		assert.True(t, list[2].Malformed())
		assert.True(t, list[3].Malformed())
		assert.Empty(t, list[3].Doctor)

		out, err := json.Marshal(list)
		require.NoError(t, err)
		assert.Equal(t, stored, string(out))
	})
}
