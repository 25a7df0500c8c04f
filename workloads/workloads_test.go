package workloads

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/calbench/benchmark"
)

func TestReference(t *testing.T) {
	pdt := time.FixedZone("PDT", -7*3600)
	assert.Equal(t, "2016-09-23T14:35:55-07:00", Reference.In(pdt).Format(time.RFC3339))
}

func TestThanksgivingDates(t *testing.T) {
	var got []string
	for d := range Gregorian().Dates(Reference, Thanksgiving) {
		got = append(got, d.Format(time.DateOnly))
		if len(got) == 4 {
			break
		}
	}
	assert.Equal(t, []string{"2016-11-24", "2017-11-23", "2018-11-22", "2019-11-28"}, got)
}

func TestDatesStrictlyAfterStart(t *testing.T) {
	start := time.Date(2016, time.November, 24, 0, 0, 0, 0, time.UTC)
	for d := range Gregorian().Dates(start, Thanksgiving) {
		assert.Equal(t, 2017, d.Year())
		break
	}
}

func TestDatesSkipsMissingFifthWeekday(t *testing.T) {
	// The next February with five Sundays is in 2032.
	fifthSunday := NthWeekday{Month: time.February, Weekday: time.Sunday, N: 5}
	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := range Gregorian().Dates(start, fifthSunday) {
		assert.Equal(t, "2032-02-29", d.Format(time.DateOnly))
		break
	}

	count := 0
	for range Gregorian().Dates(start, NthWeekday{Month: time.May, Weekday: time.Monday, N: 0}) {
		count++
	}
	assert.Zero(t, count)
}

func TestDatesOutOfRangeRule(t *testing.T) {
	for _, m := range []NthWeekday{
		{Month: time.May, Weekday: time.Monday, N: 0},
		{Month: time.May, Weekday: time.Monday, N: 6},
		{Month: 0, Weekday: time.Thursday, N: 1},
		{Month: 13, Weekday: time.Thursday, N: 1},
	} {
		done := make(chan int, 1)
		go func() {
			count := 0
			for range Gregorian().Dates(Reference, m) {
				count++
			}
			done <- count
		}()

		select {
		case count := <-done:
			assert.Zero(t, count, "%+v", m)
		case <-time.After(2 * time.Second):
			t.Fatalf("Dates(%+v) did not return", m)
		}
	}
}

func TestComponents(t *testing.T) {
	d := time.Date(2016, time.November, 24, 0, 0, 0, 0, time.UTC)
	c := Gregorian().Components(d)

	assert.Equal(t, DateComponents{
		Era:               1,
		Year:              2016,
		Month:             time.November,
		Day:               24,
		Weekday:           time.Thursday,
		WeekdayOrdinal:    4,
		Quarter:           4,
		WeekOfMonth:       4,
		WeekOfYear:        47,
		YearForWeekOfYear: 2016,
		Location:          time.UTC,
	}, c)

	monday := Gregorian().WithFirstWeekday(time.Monday).Components(d)
	assert.Equal(t, 4, monday.WeekOfMonth)
	firstOfMonth := Gregorian().Components(time.Date(2016, time.November, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, firstOfMonth.WeekOfMonth)
	sixth := Gregorian().Components(time.Date(2016, time.November, 6, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, sixth.WeekOfMonth)
}

func TestCalendarIsAValue(t *testing.T) {
	cal := Gregorian()
	moved := cal.WithFirstWeekday(time.Monday).WithLocation(halfHourEast)

	assert.Equal(t, time.Sunday, cal.FirstWeekday())
	assert.Equal(t, time.UTC, cal.Location())
	assert.Equal(t, time.Monday, moved.FirstWeekday())
	assert.Equal(t, halfHourEast, moved.Location())

	assert.Equal(t, time.Local, AutoupdatingCurrentCalendar().Location())
	assert.Equal(t, halfHourEast, AutoupdatingCurrentCalendar().WithLocation(halfHourEast).Location())
}

func TestAddDays(t *testing.T) {
	next := Gregorian().AddDays(Reference, 1)
	assert.Equal(t, "2016-09-24T21:35:55Z", next.Format(time.RFC3339))
	assert.Equal(t, 795410000, next.Nanosecond())
}

func TestLocaleIdentifier(t *testing.T) {
	for in, want := range map[string]string{
		"en_US":      "en_US",
		"en-US":      "en_US",
		"zh-Hant-TW": "zh_Hant_TW",
		"fr":         "fr",
	} {
		l, err := NewLocale(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, l.Identifier(), in)
	}

	_, err := NewLocale("not a locale!")
	assert.Error(t, err)
}

func TestAutoupdatingCurrentLocaleFollowsEnvironment(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, "de_DE", AutoupdatingCurrentLocale().Identifier())

	t.Setenv("LC_ALL", "fr_CA")
	assert.Equal(t, "fr_CA", AutoupdatingCurrentLocale().Identifier())

	t.Setenv("LC_ALL", "C")
	assert.Equal(t, DefaultLocaleIdentifier, AutoupdatingCurrentLocale().Identifier())

	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "")
	assert.Equal(t, DefaultLocaleIdentifier, AutoupdatingCurrentLocale().Identifier())

	assert.NotEmpty(t, CurrentLocale().Identifier())
	assert.Equal(t, CurrentLocale(), CurrentLocale())
}

func TestIdentifierFromComponents(t *testing.T) {
	assert.Equal(t, "en", IdentifierFromComponents(englishComponents))
	assert.Equal(t, "zh_Hans_TW", IdentifierFromComponents(chineseComponents))
	assert.Equal(t, "es_409", IdentifierFromComponents(spanishComponents))
	assert.Equal(t, "", IdentifierFromComponents(LocaleComponents{}))
	assert.Equal(t, "sr_Latn", IdentifierFromComponents(LocaleComponents{Language: "SR", Script: "latn"}))
}

func TestRegister(t *testing.T) {
	reg := benchmark.NewRegistry()
	require.NoError(t, Register(reg))

	assert.Equal(t, []string{
		NameNextThousandThanksgivings,
		NameCurrentDateComponentsFromThanksgivings,
		NameAllocationsForFixedCalendars,
		NameAllocationsForCurrentCalendar,
		NameAllocationsForAutoupdatingCurrentCalendar,
		NameCopyOnWritePerformance,
		NameCopyOnWritePerformanceNoDiff,
		NameAllocationsForFixedLocale,
		NameAllocationsForCurrentLocale,
		NameAllocationsForAutoupdatingCurrentLocale,
		NameIdentifierFromComponents,
	}, reg.Names())

	for _, def := range reg.Definitions() {
		switch def.Name {
		case NameNextThousandThanksgivings, NameCurrentDateComponentsFromThanksgivings:
			assert.True(t, def.Override.IsZero(), def.Name)
		default:
			require.NotNil(t, def.Override.ScalingFactor, def.Name)
			assert.Equal(t, benchmark.Mega, *def.Override.ScalingFactor, def.Name)
		}
	}

	assert.ErrorIs(t, Register(reg), benchmark.ErrDuplicateName)
	assert.Len(t, Overrides(), 9)
}

func TestSuiteRuns(t *testing.T) {
	reg := benchmark.NewRegistry()
	reg.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, Register(reg))

	small := make(map[string]*benchmark.Override)
	for _, name := range reg.Names() {
		small[name] = benchmark.NewOverride().WithScalingFactor(benchmark.Kilo).Build()
	}

	global := benchmark.Configuration{
		MaxIterations: 2,
		MaxDuration:   time.Second,
		ScalingFactor: benchmark.Kilo,
		Metrics:       benchmark.NewMetricSet(benchmark.WallClock, benchmark.MallocCountTotal, benchmark.Throughput),
	}
	results, err := reg.RunAll(context.Background(), global, benchmark.WithOverrides(small))
	require.NoError(t, err)
	require.Len(t, results, 11)

	for _, r := range results {
		assert.False(t, r.Failed(), "%s: %v", r.Name, r.Err)
		assert.GreaterOrEqual(t, r.Iterations, 1, r.Name)
		_, ok := r.Sample(benchmark.WallClock)
		assert.True(t, ok, r.Name)
	}
}

func BenchmarkIdentifierFromComponents(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = IdentifierFromComponents(chineseComponents)
	}
}

func BenchmarkThanksgivings(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = nextThousandThanksgivings(nil)
	}
}
