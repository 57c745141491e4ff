package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addtocal/internal/model"
)

func timed(start, end string) model.NormalizedEvent {
	ev := model.NormalizedEvent{Title: "Dinner", Date: "2025-03-10"}
	if start != "" {
		ev.Time = model.Ptr(start)
	}
	if end != "" {
		ev.EndTime = model.Ptr(end)
	}
	return ev
}

func TestValidate(t *testing.T) {
	t.Run("trims and keeps fields", func(t *testing.T) {
		ev, err := Validate(model.RawEventFields{
			Title:       "  Dinner with Sam ",
			Date:        " 2025-03-10",
			Time:        model.Ptr("18:30"),
			Description: "bring wine",
			Location:    "6 Hannah St, Beecroft NSW 2119",
		})
		require.NoError(t, err)
		assert.Equal(t, "Dinner with Sam", ev.Title)
		assert.Equal(t, "2025-03-10", ev.Date)
		assert.Equal(t, "18:30", model.Deref(ev.Time))
		assert.Nil(t, ev.EndTime)
		assert.True(t, ev.Incomplete())
		assert.Equal(t, "bring wine", ev.Description)
		assert.Equal(t, "6 Hannah St, Beecroft NSW 2119", ev.Location)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := Validate(model.RawEventFields{Title: "   ", Date: "2025-03-10"})
		assert.ErrorIs(t, err, model.ErrMissingRequiredField)
	})

	t.Run("missing date", func(t *testing.T) {
		_, err := Validate(model.RawEventFields{Title: "Dinner"})
		assert.ErrorIs(t, err, model.ErrMissingRequiredField)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := Validate(model.RawEventFields{Title: "Dinner", Date: "next tuesday"})
		assert.ErrorIs(t, err, model.ErrInvalidField)
	})

	t.Run("malformed time", func(t *testing.T) {
		_, err := Validate(model.RawEventFields{Title: "Dinner", Date: "2025-03-10", Time: model.Ptr("6.30pm")})
		assert.ErrorIs(t, err, model.ErrInvalidField)
	})

	t.Run("blank and null clocks are absent", func(t *testing.T) {
		ev, err := Validate(model.RawEventFields{
			Title: "Holiday", Date: "2025-12-25",
			Time: model.Ptr(" "), EndTime: model.Ptr("null"),
		})
		require.NoError(t, err)
		assert.True(t, ev.AllDay())
		assert.Nil(t, ev.EndTime)
	})

	t.Run("end without start is dropped", func(t *testing.T) {
		ev, err := Validate(model.RawEventFields{Title: "Holiday", Date: "2025-12-25", EndTime: model.Ptr("10:00")})
		require.NoError(t, err)
		assert.True(t, ev.AllDay())
		assert.Nil(t, ev.EndTime)
	})

	t.Run("canonicalizes clocks", func(t *testing.T) {
		ev, err := Validate(model.RawEventFields{
			Title: "Standup", Date: "2025-03-10",
			Time: model.Ptr("9:05"), EndTime: model.Ptr("09:25:00"),
		})
		require.NoError(t, err)
		assert.Equal(t, "09:05", model.Deref(ev.Time))
		assert.Equal(t, "09:25", model.Deref(ev.EndTime))
	})
}

func TestResolveEndTime(t *testing.T) {
	cases := []struct {
		name    string
		in      model.NormalizedEvent
		minutes int
		wantEnd string
	}{
		{"standard default", timed("18:30", ""), 50, "19:20"},
		{"short default", timed("14:00", ""), 20, "14:20"},
		{"rolls past midnight", timed("23:50", ""), 50, "00:40"},
		{"already complete", timed("18:30", "21:00"), 50, "21:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ResolveEndTime(tc.in, tc.minutes)
			require.NoError(t, err)
			assert.Equal(t, tc.wantEnd, model.Deref(ev.EndTime))
			assert.Equal(t, model.Deref(tc.in.Time), model.Deref(ev.Time))
		})
	}

	t.Run("all day untouched", func(t *testing.T) {
		in := timed("", "")
		ev, err := ResolveEndTime(in, 50)
		require.NoError(t, err)
		assert.Equal(t, in, ev)
	})
}

func TestResolveEndTimeIdempotent(t *testing.T) {
	once, err := ResolveEndTime(timed("18:30", ""), 50)
	require.NoError(t, err)
	twice, err := ResolveEndTime(once, 50)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	// A different default must not re-shift a resolved event either.
	other, err := ResolveEndTime(once, 20)
	require.NoError(t, err)
	assert.Equal(t, once, other)
}

func TestApplyEditShiftsEndWithStart(t *testing.T) {
	ev, err := ApplyEdit(timed("18:30", "19:10"), FieldTime, "19:00")
	require.NoError(t, err)
	assert.Equal(t, "19:00", model.Deref(ev.Time))
	assert.Equal(t, "19:40", model.Deref(ev.EndTime))

	ev, err = ApplyEdit(timed("23:00", "00:30"), FieldTime, "23:30")
	require.NoError(t, err)
	assert.Equal(t, "01:00", model.Deref(ev.EndTime))
}

func TestApplyEditStartOnIncompleteOrAllDay(t *testing.T) {
	ev, err := ApplyEdit(timed("", ""), FieldTime, "10:00")
	require.NoError(t, err)
	assert.Equal(t, "10:00", model.Deref(ev.Time))
	assert.Nil(t, ev.EndTime)

	ev, err = ApplyEdit(timed("09:00", ""), FieldTime, "10:00")
	require.NoError(t, err)
	assert.Equal(t, "10:00", model.Deref(ev.Time))
	assert.Nil(t, ev.EndTime)
}

func TestApplyEditClearingStartMakesAllDay(t *testing.T) {
	ev, err := ApplyEdit(timed("18:30", "19:20"), FieldTime, "")
	require.NoError(t, err)
	assert.True(t, ev.AllDay())
	assert.Nil(t, ev.EndTime)
}

func TestApplyEditEndTime(t *testing.T) {
	ev, err := ApplyEdit(timed("18:30", "19:20"), FieldEndTime, "21:00")
	require.NoError(t, err)
	assert.Equal(t, "18:30", model.Deref(ev.Time))
	assert.Equal(t, "21:00", model.Deref(ev.EndTime))

	ev, err = ApplyEdit(timed("18:30", "19:20"), FieldEndTime, "")
	require.NoError(t, err)
	assert.True(t, ev.Incomplete())

	_, err = ApplyEdit(timed("", ""), FieldEndTime, "10:00")
	assert.ErrorIs(t, err, model.ErrInvalidField)
}

func TestApplyEditPlainFieldsHaveNoSideEffects(t *testing.T) {
	base := timed("18:30", "19:20")
	base.Description = "old"
	base.Location = "old place"

	cases := []struct {
		field string
		value string
		check func(t *testing.T, ev model.NormalizedEvent)
	}{
		{FieldTitle, "Brunch", func(t *testing.T, ev model.NormalizedEvent) { assert.Equal(t, "Brunch", ev.Title) }},
		{FieldDescription, "", func(t *testing.T, ev model.NormalizedEvent) { assert.Equal(t, "", ev.Description) }},
		{FieldLocation, "Zoom", func(t *testing.T, ev model.NormalizedEvent) { assert.Equal(t, "Zoom", ev.Location) }},
		{FieldDate, "2025-03-11", func(t *testing.T, ev model.NormalizedEvent) { assert.Equal(t, "2025-03-11", ev.Date) }},
		{FieldDate, "", func(t *testing.T, ev model.NormalizedEvent) { assert.Equal(t, "", ev.Date) }},
	}
	for _, tc := range cases {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			ev, err := ApplyEdit(base, tc.field, tc.value)
			require.NoError(t, err)
			tc.check(t, ev)
			assert.Equal(t, "18:30", model.Deref(ev.Time))
			assert.Equal(t, "19:20", model.Deref(ev.EndTime))
		})
	}
}

func TestApplyEditRejectsBadInput(t *testing.T) {
	base := timed("18:30", "19:20")

	ev, err := ApplyEdit(base, "colour", "red")
	assert.ErrorIs(t, err, model.ErrUnknownField)
	assert.Equal(t, base, ev)

	ev, err = ApplyEdit(base, FieldTime, "half six")
	assert.ErrorIs(t, err, model.ErrInvalidField)
	assert.Equal(t, base, ev)

	ev, err = ApplyEdit(base, FieldDate, "2025-02-30")
	assert.ErrorIs(t, err, model.ErrInvalidField)
	assert.Equal(t, base, ev)
}
